package services

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var instagramRe = regexp.MustCompile(`(?i)(?:^|[./])(?:instagram\.com/(?:p|reels?|tv|stories)|instagr\.am)/`)

// InstagramHandler downloads posts, reels and carousels. yt-dlp covers
// video posts; photo posts and mixed carousels fall back to cobalt, which
// serves direct CDN URLs for every carousel item.
type InstagramHandler struct {
	cobalt      *CobaltClient
	cookiesFile string
	log         *zap.Logger
}

func NewInstagramHandler(cobalt *CobaltClient, cookiesFile string, log *zap.Logger) *InstagramHandler {
	return &InstagramHandler{cobalt: cobalt, cookiesFile: cookiesFile, log: log}
}

func (h *InstagramHandler) Name() string { return HandlerInstagram }

func (h *InstagramHandler) CanHandle(url string) bool {
	return instagramRe.MatchString(url)
}

func (h *InstagramHandler) Download(ctx context.Context, rawURL string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error) {
	cleanURL := stripQuery(rawURL)

	job := ytdlpJob{
		URL:         cleanURL,
		OutputTmpl:  filepath.Join(opts.OutputDir, opts.JobID+"_%(title).50s_%(autonumber)s.%(ext)s"),
		Format:      "best",
		Playlist:    true,
		CookiesFile: h.cookiesFile,
	}

	// Photo-only posts make yt-dlp report "no video"; that is the cobalt
	// fallback trigger, not a failure.
	if err := runYtdlp(ctx, h.log, job, onProgress); err != nil && KindOf(err) != KindNoMedia {
		return nil, err
	}

	files, err := collectOutputs(opts.OutputDir, opts.JobID)
	if err != nil {
		return nil, WrapError(KindInternal, "scan output dir", err)
	}
	if len(files) == 0 {
		h.log.Info("yt-dlp produced nothing, trying cobalt", zap.String("job", opts.JobID))
		return h.downloadViaCobalt(ctx, cleanURL, opts, onProgress)
	}

	return &DownloadOutput{Files: files, MediaType: classifyFiles(files)}, nil
}

func (h *InstagramHandler) downloadViaCobalt(ctx context.Context, mediaURL string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error) {
	items, err := h.cobalt.Resolve(ctx, mediaURL)
	if err != nil {
		return nil, WrapError(KindNoMedia, "no media via extractor or cobalt", err)
	}

	var files []string
	for i, item := range items {
		dest := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_%02d%s", opts.JobID, i+1, extForKind(item.Kind)))
		if err := h.cobalt.Fetch(ctx, item.URL, dest, onProgress); err != nil {
			return nil, WrapError(KindInternal, "cobalt fetch failed", err)
		}
		files = append(files, dest)
	}
	if len(files) == 0 {
		return nil, NewError(KindNoMedia, "post has no downloadable media")
	}
	return &DownloadOutput{Files: files, MediaType: classifyFiles(files)}, nil
}

func extForKind(kind string) string {
	switch kind {
	case "photo":
		return ".jpg"
	case "gif":
		return ".gif"
	default:
		return ".mp4"
	}
}

// stripQuery drops query params and fragments; Instagram share links carry
// tracking junk that breaks extraction.
func stripQuery(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
