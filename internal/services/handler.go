package services

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/calv06/snag/internal/config"
)

// MediaType tells the delivery layer what kind of content a download
// produced.
type MediaType string

const (
	MediaAudio      MediaType = "audio"
	MediaVideo      MediaType = "video"
	MediaPhoto      MediaType = "photo"
	MediaPhotoAlbum MediaType = "photo_album"
	MediaVideoAlbum MediaType = "video_album"
	MediaMixedAlbum MediaType = "mixed_album"
)

func (m MediaType) IsAlbum() bool {
	return m == MediaPhotoAlbum || m == MediaVideoAlbum || m == MediaMixedAlbum
}

// Mode selects audio-only or video output where the platform offers both.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

type ProgressStage string

const (
	StageDownloading ProgressStage = "downloading"
	StageFinished    ProgressStage = "finished"
	StageConverting  ProgressStage = "converting"
)

// ProgressEvent is a point-in-time download snapshot. Percent is zero when
// the extractor reports no total size; DoneBytes may still grow.
type ProgressEvent struct {
	Stage      ProgressStage
	Percent    float64
	DoneBytes  int64
	TotalBytes int64
}

// ProgressFunc receives events on the downloader goroutine and must not
// block. Throttling and chat edits happen in the Reporter.
type ProgressFunc func(ProgressEvent)

type DownloadOptions struct {
	Mode      Mode
	Quality   int    // max video height, 0 means platform default
	OutputDir string
	JobID     string // prefix for every file the job writes
}

type DownloadOutput struct {
	Files     []string
	MediaType MediaType
}

// Handler downloads media for one platform. CanHandle must stay pure: no
// network, no filesystem, pattern checks only.
type Handler interface {
	Name() string
	CanHandle(url string) bool
	Download(ctx context.Context, url string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error)
}

const (
	HandlerYouTube   = "youtube"
	HandlerInstagram = "instagram"
	HandlerFacebook  = "facebook"
	HandlerTikTok    = "tiktok"
)

// DefaultHandlers builds the platform handlers in routing priority order.
func DefaultHandlers(cfg *config.Config, log *zap.Logger) []Handler {
	cookies := cfg.Download.CookiesFile
	cobalt := NewCobaltClient(cfg.Download.CobaltAPIs, cfg.Download.CobaltAPIKey, log)
	return []Handler{
		NewYouTubeHandler(cookies, log),
		NewInstagramHandler(cobalt, cookies, log),
		NewFacebookHandler(cookies, cfg.Download.DefaultQuality, log),
		NewTikTokHandler(log),
	}
}

// SelectHandler returns the first handler claiming the URL, in registration
// order.
func SelectHandler(handlers []Handler, url string) Handler {
	for _, h := range handlers {
		if h.CanHandle(url) {
			return h
		}
	}
	return nil
}

var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func isPhotoFile(path string) bool {
	return photoExts[strings.ToLower(filepath.Ext(path))]
}

// classifyFiles derives the MediaType for downloaded visual media.
func classifyFiles(files []string) MediaType {
	photos, videos := 0, 0
	for _, f := range files {
		if isPhotoFile(f) {
			photos++
		} else {
			videos++
		}
	}
	switch {
	case len(files) <= 1:
		if photos == 1 {
			return MediaPhoto
		}
		return MediaVideo
	case videos == 0:
		return MediaPhotoAlbum
	case photos == 0:
		return MediaVideoAlbum
	default:
		return MediaMixedAlbum
	}
}
