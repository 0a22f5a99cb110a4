package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gofileServersOK(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"data": map[string]interface{}{
				"servers": []map[string]string{{"name": name}},
			},
		})
	}
}

func TestGofileUpload(t *testing.T) {
	var gotName string
	var gotBody []byte

	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotName = header.Filename
		gotBody, _ = io.ReadAll(f)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"data":   map[string]string{"downloadPage": "https://gofile.io/d/abc123"},
		})
	}))
	defer upload.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers", r.URL.Path)
		gofileServersOK("store1")(w, r)
	}))
	defer api.Close()

	src := filepath.Join(t.TempDir(), "big video.mp4")
	require.NoError(t, os.WriteFile(src, []byte("fake video bytes"), 0644))

	u := NewGofileUploader(api.URL, zap.NewNop())
	u.uploadTmpl = upload.URL + "/contents/uploadfile?server=%s"

	link, err := u.Upload(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "https://gofile.io/d/abc123", link)
	assert.Equal(t, "big video.mp4", gotName)
	assert.Equal(t, "fake video bytes", string(gotBody))
}

func TestGofileUploadSanitizesRemoteName(t *testing.T) {
	var gotName string
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		gotName = header.Filename
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"data":   map[string]string{"downloadPage": "https://gofile.io/d/abc123"},
		})
	}))
	defer upload.Close()

	api := httptest.NewServer(gofileServersOK("store1"))
	defer api.Close()

	src := filepath.Join(t.TempDir(), "My%20Video%E2%80%99s.mp4")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	u := NewGofileUploader(api.URL, zap.NewNop())
	u.uploadTmpl = upload.URL + "/contents/uploadfile?server=%s"

	_, err := u.Upload(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "My_Video_s.mp4", gotName, "escape residue must not reach the hosted page")
}

func TestGofileUploadNoServers(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "error",
			"data":   map[string]interface{}{},
		})
	}))
	defer api.Close()

	u := NewGofileUploader(api.URL, zap.NewNop())
	_, err := u.Upload(context.Background(), "/tmp/whatever.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server available")
}

func TestGofileUploadRejected(t *testing.T) {
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "error"})
	}))
	defer upload.Close()

	api := httptest.NewServer(gofileServersOK("store1"))
	defer api.Close()

	src := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	u := NewGofileUploader(api.URL, zap.NewNop())
	u.uploadTmpl = upload.URL + "/contents/uploadfile?server=%s"

	_, err := u.Upload(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `status "error"`)
}

func TestGofileUploadMissingSource(t *testing.T) {
	api := httptest.NewServer(gofileServersOK("store1"))
	defer api.Close()

	u := NewGofileUploader(api.URL, zap.NewNop())
	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open upload source")
}
