package services

import (
	"context"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var tiktokRe = regexp.MustCompile(`(?i)(?:^|[./])tiktok\.com/`)

// TikTokHandler downloads TikTok videos, including vm/vt short links.
// TikTok rejects requests without browser-looking headers.
type TikTokHandler struct {
	log *zap.Logger
}

func NewTikTokHandler(log *zap.Logger) *TikTokHandler {
	return &TikTokHandler{log: log}
}

func (h *TikTokHandler) Name() string { return HandlerTikTok }

func (h *TikTokHandler) CanHandle(url string) bool {
	return tiktokRe.MatchString(url)
}

func (h *TikTokHandler) Download(ctx context.Context, url string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error) {
	job := ytdlpJob{
		URL:         url,
		OutputTmpl:  filepath.Join(opts.OutputDir, opts.JobID+"_%(title).50s.%(ext)s"),
		Format:      "best",
		MergeFormat: "mp4",
		Headers: map[string]string{
			"User-Agent": browserUA,
			"Referer":    "https://www.tiktok.com/",
		},
	}

	if err := runYtdlp(ctx, h.log, job, onProgress); err != nil {
		return nil, err
	}

	files, err := collectOutputs(opts.OutputDir, opts.JobID)
	if err != nil {
		return nil, WrapError(KindInternal, "scan output dir", err)
	}
	if len(files) == 0 {
		return nil, NewError(KindPostProcessing, "no output file after download")
	}
	return &DownloadOutput{Files: files[:1], MediaType: MediaVideo}, nil
}
