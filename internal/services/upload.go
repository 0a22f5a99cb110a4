package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/calv06/snag/internal/util"
)

// Uploader pushes a file to an external host and returns a shareable link.
// Used when a download exceeds what the chat platform accepts inline.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// GofileUploader implements the gofile.io flow: ask the API for an upload
// server, then stream the file to it as multipart form data.
type GofileUploader struct {
	apiBase    string
	uploadTmpl string
	httpc      *http.Client
	log        *zap.Logger
}

func NewGofileUploader(apiBase string, log *zap.Logger) *GofileUploader {
	return &GofileUploader{
		apiBase:    apiBase,
		uploadTmpl: "https://%s.gofile.io/contents/uploadfile",
		httpc:      &http.Client{Timeout: 10 * time.Minute},
		log:        log,
	}
}

type gofileServersResp struct {
	Status string `json:"status"`
	Data   struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	} `json:"data"`
}

type gofileUploadResp struct {
	Status string `json:"status"`
	Data   struct {
		DownloadPage string `json:"downloadPage"`
	} `json:"data"`
}

func (u *GofileUploader) Upload(ctx context.Context, path string) (string, error) {
	server, err := u.pickServer(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", util.SanitizeFilename(filepath.Base(path)))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf(u.uploadTmpl, server)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	u.log.Info("uploading to gofile", zap.String("server", server), zap.String("file", filepath.Base(path)))

	resp, err := u.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gofile upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gofile upload: HTTP %d", resp.StatusCode)
	}

	var parsed gofileUploadResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gofile upload: decode response: %w", err)
	}
	if parsed.Status != "ok" || parsed.Data.DownloadPage == "" {
		return "", fmt.Errorf("gofile upload: status %q", parsed.Status)
	}
	return parsed.Data.DownloadPage, nil
}

func (u *GofileUploader) pickServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.apiBase+"/servers", nil)
	if err != nil {
		return "", err
	}
	resp, err := u.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gofile servers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gofile servers: HTTP %d", resp.StatusCode)
	}

	var parsed gofileServersResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gofile servers: decode response: %w", err)
	}
	if parsed.Status != "ok" || len(parsed.Data.Servers) == 0 {
		return "", fmt.Errorf("gofile servers: no server available (status %q)", parsed.Status)
	}
	return parsed.Data.Servers[0].Name, nil
}
