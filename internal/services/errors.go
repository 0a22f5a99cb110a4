package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure so the orchestrator can pick the right
// user-facing message without matching on error strings.
type Kind string

const (
	KindUnsupportedURL    Kind = "unsupported_url"
	KindStaleSession      Kind = "stale_session"
	KindExtractionBlocked Kind = "extraction_blocked"
	KindNoMedia           Kind = "no_media"
	KindPostProcessing    Kind = "post_processing"
	KindDelivery          Kind = "delivery"
	KindUploadFailed      Kind = "upload_failed"
	KindInternal          Kind = "internal"
)

type DownloadError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func NewError(kind Kind, message string) *DownloadError {
	return &DownloadError{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, err error) *DownloadError {
	return &DownloadError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from anywhere in the error chain, defaulting to
// KindInternal for untyped errors.
func KindOf(err error) Kind {
	var derr *DownloadError
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindInternal
}

var userMessages = map[Kind]string{
	KindUnsupportedURL:    "This link isn't supported.",
	KindStaleSession:      "Link not found. Please send the URL again.",
	KindExtractionBlocked: "The site is blocking downloads right now (sign-in or rate limit). Try again later.",
	KindNoMedia:           "No downloadable media found at this link.",
	KindPostProcessing:    "Processing failed after the download. Try a lower quality.",
	KindDelivery:          "Sending the file to Telegram failed. Try again later.",
	KindUploadFailed:      "The file is too large for Telegram and the upload fallback failed.",
	KindInternal:          "Download failed. Try again later.",
}

// UserMessage renders err as a short message safe to show in chat.
func UserMessage(err error) string {
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return userMessages[KindInternal]
}

// Raw extractor output is folded into a Kind here and nowhere else;
// substring matching stays confined to this one boundary.
var blockedMarkers = []string{
	"sign in to confirm",
	"confirm your age",
	"private video",
	"this video is unavailable",
	"login required",
	"account is private",
	"http error 429",
	"rate-limit reached",
}

var noMediaMarkers = []string{
	"there is no video",
	"no video formats",
	"no media found",
	"unsupported url",
	"unable to extract",
	"http error 404",
	"requested format is not available",
}

func classifyExtractorOutput(output string) Kind {
	lower := strings.ToLower(output)
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return KindExtractionBlocked
		}
	}
	for _, marker := range noMediaMarkers {
		if strings.Contains(lower, marker) {
			return KindNoMedia
		}
	}
	return KindInternal
}
