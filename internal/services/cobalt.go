package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// cobaltItem is one downloadable media entry resolved through a cobalt
// instance. Kind mirrors cobalt's picker types: photo, video or gif.
type cobaltItem struct {
	URL  string
	Kind string
}

// CobaltClient resolves media through public cobalt instances, as a
// fallback extractor for posts yt-dlp cannot read.
type CobaltClient struct {
	apis   []string
	apiKey string
	httpc  *http.Client
	log    *zap.Logger
}

func NewCobaltClient(apis []string, apiKey string, log *zap.Logger) *CobaltClient {
	return &CobaltClient{
		apis:   apis,
		apiKey: apiKey,
		httpc:  &http.Client{Timeout: 5 * time.Minute},
		log:    log,
	}
}

func (c *CobaltClient) headers() map[string]string {
	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if c.apiKey != "" {
		h["Authorization"] = "Api-Key " + c.apiKey
	}
	return h
}

func (c *CobaltClient) post(ctx context.Context, apiURL string, body map[string]interface{}) (map[string]interface{}, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers() {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errData map[string]interface{}
		if json.Unmarshal(respBody, &errData) == nil {
			if errObj, ok := errData["error"].(map[string]interface{}); ok {
				if code, ok := errObj["code"].(string); ok {
					return nil, fmt.Errorf("%s", code)
				}
			}
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON response")
	}
	if data["status"] == "error" {
		if errObj, ok := data["error"].(map[string]interface{}); ok {
			if code, ok := errObj["code"].(string); ok {
				return nil, fmt.Errorf("%s", code)
			}
		}
		return nil, fmt.Errorf("cobalt error")
	}
	return data, nil
}

// Resolve asks each configured instance for direct media URLs, returning on
// the first success. Picker responses (carousels) expand to every item.
func (c *CobaltClient) Resolve(ctx context.Context, mediaURL string) ([]cobaltItem, error) {
	body := map[string]interface{}{
		"url":           mediaURL,
		"downloadMode":  "auto",
		"filenameStyle": "basic",
		"videoQuality":  "1080",
	}

	var lastErr error
	for _, apiURL := range c.apis {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		data, err := c.post(ctx, apiURL, body)
		if err != nil {
			c.log.Debug("cobalt instance failed", zap.String("api", apiURL), zap.Error(err))
			lastErr = err
			continue
		}

		var items []cobaltItem
		status, _ := data["status"].(string)
		switch status {
		case "tunnel", "redirect":
			if u, ok := data["url"].(string); ok && u != "" {
				items = append(items, cobaltItem{URL: u, Kind: "video"})
			}
		case "picker":
			picker, _ := data["picker"].([]interface{})
			for _, raw := range picker {
				entry, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				u, _ := entry["url"].(string)
				if u == "" {
					continue
				}
				kind, _ := entry["type"].(string)
				items = append(items, cobaltItem{URL: u, Kind: kind})
			}
		}

		if len(items) == 0 {
			lastErr = fmt.Errorf("no download URL in response (status %q)", status)
			continue
		}
		c.log.Info("cobalt resolved media",
			zap.String("api", apiURL), zap.String("status", status), zap.Int("items", len(items)))
		return items, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no cobalt instances configured")
}

// Fetch streams one resolved URL to disk, reporting byte progress.
func (c *CobaltClient) Fetch(ctx context.Context, mediaURL, dest string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("file download failed: HTTP %d", resp.StatusCode)
	}
	total := resp.ContentLength

	f, err := os.Create(dest)
	if err != nil {
		return err
	}

	var done int64
	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			f.Close()
			os.Remove(dest)
			return ctx.Err()
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(dest)
				return werr
			}
			done += int64(n)
			if onProgress != nil {
				ev := ProgressEvent{Stage: StageDownloading, DoneBytes: done}
				if total > 0 {
					ev.TotalBytes = total
					ev.Percent = math.Min(100, float64(done)/float64(total)*100)
				}
				onProgress(ev)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			f.Close()
			os.Remove(dest)
			return readErr
		}
	}
	return f.Close()
}
