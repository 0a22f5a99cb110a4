package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var youtubeRe = regexp.MustCompile(`(?i)(?:^|[./])(?:youtube\.com|youtu\.be)/`)

// YouTubeHandler downloads YouTube videos, shorts and music. It is the only
// handler that waits for a user mode/quality choice before starting.
type YouTubeHandler struct {
	cookiesFile string
	log         *zap.Logger
}

func NewYouTubeHandler(cookiesFile string, log *zap.Logger) *YouTubeHandler {
	return &YouTubeHandler{cookiesFile: cookiesFile, log: log}
}

func (h *YouTubeHandler) Name() string { return HandlerYouTube }

func (h *YouTubeHandler) CanHandle(url string) bool {
	return youtubeRe.MatchString(url)
}

// Download uses cookies when a cookies file is present, otherwise attempts
// public-only access. Sign-in demands surface as KindExtractionBlocked.
func (h *YouTubeHandler) Download(ctx context.Context, url string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error) {
	job := ytdlpJob{
		URL:         url,
		OutputTmpl:  filepath.Join(opts.OutputDir, opts.JobID+"_%(title).80s.%(ext)s"),
		CookiesFile: h.cookiesFile,
	}

	if opts.Mode == ModeAudio {
		job.Format = "bestaudio/best"
		job.ExtractMP3 = true
	} else {
		job.Format = videoFormat(opts.Quality)
		job.MergeFormat = "mp4"
	}

	if err := runYtdlp(ctx, h.log, job, onProgress); err != nil {
		return nil, err
	}

	files, err := collectOutputs(opts.OutputDir, opts.JobID)
	if err != nil {
		return nil, WrapError(KindInternal, "scan output dir", err)
	}
	if opts.Mode == ModeAudio {
		files = filterExt(files, ".mp3")
	} else if len(files) > 1 {
		// Merge leftovers: prefer the final mp4 over intermediate tracks.
		if mp4 := filterExt(files, ".mp4"); len(mp4) > 0 {
			files = mp4
		}
	}
	if len(files) == 0 {
		return nil, NewError(KindPostProcessing, "no output file after download")
	}

	mediaType := MediaVideo
	if opts.Mode == ModeAudio {
		mediaType = MediaAudio
	}
	return &DownloadOutput{Files: files[:1], MediaType: mediaType}, nil
}

// videoFormat prefers AVC video with AAC audio so Telegram can stream the
// merged mp4 without re-encoding; height 0 means no cap.
func videoFormat(height int) string {
	if height <= 0 {
		return "bv[vcodec^=avc]+ba[acodec^=mp4a]/bv+ba/b"
	}
	return fmt.Sprintf("bv[vcodec^=avc][height<=%d]+ba[acodec^=mp4a]/bv[height<=%d]+ba/b", height, height)
}

func filterExt(files []string, ext string) []string {
	var out []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ext) {
			out = append(out, f)
		}
	}
	return out
}
