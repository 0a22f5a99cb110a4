package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	facebookRe        = regexp.MustCompile(`(?i)(?:^|[./])(?:facebook\.com|fb\.watch|fb\.com)/`)
	fbTrackingParamRe = regexp.MustCompile(`[?&](?:mibextid|sfnsn|story_fbid|substory_index)=[^&]*`)
	fbShareRe         = regexp.MustCompile(`facebook\.com/share/(?:r|v)/`)
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FacebookHandler downloads public Facebook videos, including fb.watch and
// share-redirect links.
type FacebookHandler struct {
	cookiesFile    string
	defaultQuality int
	httpc          *http.Client
	log            *zap.Logger
}

func NewFacebookHandler(cookiesFile string, defaultQuality int, log *zap.Logger) *FacebookHandler {
	return &FacebookHandler{
		cookiesFile:    cookiesFile,
		defaultQuality: defaultQuality,
		httpc:          &http.Client{Timeout: 20 * time.Second},
		log:            log,
	}
}

func (h *FacebookHandler) Name() string { return HandlerFacebook }

func (h *FacebookHandler) CanHandle(url string) bool {
	return facebookRe.MatchString(url)
}

func (h *FacebookHandler) Download(ctx context.Context, rawURL string, opts DownloadOptions, onProgress ProgressFunc) (*DownloadOutput, error) {
	target := normalizeFacebookURL(rawURL)
	if fbShareRe.MatchString(target) {
		expanded, err := h.expandShareLink(ctx, target)
		if err != nil {
			h.log.Warn("share link expansion failed", zap.String("url", target), zap.Error(err))
		} else {
			target = normalizeFacebookURL(expanded)
		}
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = h.defaultQuality
	}

	job := ytdlpJob{
		URL:         target,
		OutputTmpl:  filepath.Join(opts.OutputDir, opts.JobID+"_%(title).50s.%(ext)s"),
		Format:      fmt.Sprintf("best[height<=%d]/bestvideo[height<=%d]+bestaudio/best", quality, quality),
		MergeFormat: "mp4",
		CookiesFile: h.cookiesFile,
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

// normalizeFacebookURL strips the tracking params mobile share sheets
// append, which confuse the extractor.
func normalizeFacebookURL(rawURL string) string {
	s := fbTrackingParamRe.ReplaceAllString(rawURL, "")
	return strings.TrimRight(s, "?&")
}

// expandShareLink resolves a facebook.com/share/{r,v}/ redirect to the real
// video URL by following it with a browser user agent.
func (h *FacebookHandler) expandShareLink(ctx context.Context, shareURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := h.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final == "" || final == shareURL {
		return "", fmt.Errorf("share link did not redirect")
	}
	h.log.Debug("expanded share link", zap.String("from", shareURL), zap.String("to", final))
	return final, nil
}
