package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCobaltResolveTunnel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://www.instagram.com/p/abc/", body["url"])
		assert.Equal(t, "auto", body["downloadMode"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "tunnel",
			"url":    "https://tunnel.example/file.mp4",
		})
	}))
	defer srv.Close()

	c := NewCobaltClient([]string{srv.URL}, "", zap.NewNop())
	items, err := c.Resolve(context.Background(), "https://www.instagram.com/p/abc/")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://tunnel.example/file.mp4", items[0].URL)
	assert.Equal(t, "video", items[0].Kind)
}

func TestCobaltResolvePickerExpandsCarousel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "picker",
			"picker": []map[string]string{
				{"type": "photo", "url": "https://cdn.example/1.jpg"},
				{"type": "video", "url": "https://cdn.example/2.mp4"},
				{"type": "photo", "url": "https://cdn.example/3.jpg"},
			},
		})
	}))
	defer srv.Close()

	c := NewCobaltClient([]string{srv.URL}, "", zap.NewNop())
	items, err := c.Resolve(context.Background(), "https://www.instagram.com/p/carousel/")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "photo", items[0].Kind)
	assert.Equal(t, "video", items[1].Kind)
	assert.Equal(t, "https://cdn.example/3.jpg", items[2].URL)
}

func TestCobaltResolveSurfacesErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "error",
			"error":  map[string]string{"code": "error.api.content.post.unavailable"},
		})
	}))
	defer srv.Close()

	c := NewCobaltClient([]string{srv.URL}, "", zap.NewNop())
	_, err := c.Resolve(context.Background(), "https://www.instagram.com/p/gone/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error.api.content.post.unavailable")
}

func TestCobaltResolveFallsThroughInstances(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusBadGateway)
	}))
	defer dead.Close()

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "redirect",
			"url":    "https://cdn.example/direct.mp4",
		})
	}))
	defer alive.Close()

	c := NewCobaltClient([]string{dead.URL, alive.URL}, "", zap.NewNop())
	items, err := c.Resolve(context.Background(), "https://www.instagram.com/reel/x/")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example/direct.mp4", items[0].URL)
}

func TestCobaltResolveNoInstances(t *testing.T) {
	c := NewCobaltClient(nil, "", zap.NewNop())
	_, err := c.Resolve(context.Background(), "https://www.instagram.com/p/abc/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cobalt instances")
}

func TestCobaltApiKeyHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "tunnel", "url": "https://x/f.mp4"})
	}))
	defer srv.Close()

	c := NewCobaltClient([]string{srv.URL}, "secret123", zap.NewNop())
	_, err := c.Resolve(context.Background(), "https://www.instagram.com/p/abc/")
	require.NoError(t, err)
	assert.Equal(t, "Api-Key secret123", gotAuth)
}

func TestCobaltFetch(t *testing.T) {
	payload := []byte("media bytes here")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	var events []ProgressEvent
	dest := filepath.Join(t.TempDir(), "out.mp4")

	c := NewCobaltClient(nil, "", zap.NewNop())
	err := c.Fetch(context.Background(), srv.URL, dest, func(ev ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, int64(len(payload)), last.DoneBytes)
	assert.Equal(t, 100.0, last.Percent)
}

func TestCobaltFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.mp4")
	c := NewCobaltClient(nil, "", zap.NewNop())
	err := c.Fetch(context.Background(), srv.URL, dest, nil)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestCobaltFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.mp4")
	c := NewCobaltClient(nil, "", zap.NewNop())
	err := c.Fetch(ctx, srv.URL, dest, nil)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}
