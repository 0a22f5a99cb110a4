package services

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/calv06/snag/internal/util"
)

const (
	// Telegram caps bot uploads at 50 MiB; anything larger detours through
	// the external host.
	maxInlineFileSize = 50 * 1024 * 1024
	// Telegram media groups take at most 10 entries.
	maxAlbumItems = 10
)

var urlRe = regexp.MustCompile(`https?://\S+`)

const unsupportedText = "❌ This link isn't supported.\n\n" +
	"Supported platforms:\n" +
	"• YouTube (videos, shorts, music)\n" +
	"• Instagram (posts, reels, IGTV)\n" +
	"• Facebook (videos, fb.watch)\n" +
	"• TikTok (videos)"

// Messenger is the chat surface the orchestrator speaks through. The bot
// package implements it over the Telegram API.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendStatus(chatID int64, text string) (int, error)
	EditStatus(chatID int64, messageID int, text string) error
	DeleteStatus(chatID int64, messageID int) error
	SendAudio(chatID int64, path string) error
	SendVideo(chatID int64, path string) error
	SendPhoto(chatID int64, path string) error
	SendDocument(chatID int64, path string) error
	SendAlbum(chatID int64, items []AlbumItem) error
}

// AlbumItem is one grouped-send entry.
type AlbumItem struct {
	Path  string
	Photo bool
}

// Alerter receives admin notifications. Nil disables them.
type Alerter interface {
	JobFailed(jobID, url string, err error)
	LowDiskSpace(availGB float64)
	CookieIssue(details string)
}

// SelectionResult tells the chat layer how to react to a keyboard press.
type SelectionResult int

const (
	SelectionStarted SelectionResult = iota
	SelectionNeedQuality
	SelectionStale
	SelectionInvalid
)

type OrchestratorConfig struct {
	Handlers   []Handler
	Registry   *Registry
	Sweeper    *Sweeper
	Sessions   *SessionStore
	Jobs       *JobTracker
	Uploader   Uploader
	Messenger  Messenger
	Alerts     Alerter
	Logger     *zap.Logger
	OutputDir  string
	Workers    int
	JobTimeout time.Duration
	Qualities  []int
	MinDiskGB  float64
}

// Orchestrator owns the download lifecycle: URL intake, the mode/quality
// wait state, worker dispatch, size routing, delivery and cleanup.
type Orchestrator struct {
	cfg      OrchestratorConfig
	log      *zap.Logger
	sem      *semaphore.Weighted
	inflight sync.WaitGroup
	draining atomic.Bool
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		cfg: cfg,
		log: cfg.Logger,
		sem: semaphore.NewWeighted(int64(workers)),
	}
}

// SubmitURL handles a plain chat message. The return value asks the bot to
// present the mode keyboard: YouTube waits for a user choice, every other
// platform starts immediately.
func (o *Orchestrator) SubmitURL(chatID int64, text string) bool {
	url := extractURL(text)
	if url == "" {
		o.say(chatID, "Please send me a link to download.")
		return false
	}
	if err := util.ValidateURL(url); err != nil {
		o.say(chatID, "❌ "+err.Error())
		return false
	}

	handler := SelectHandler(o.cfg.Handlers, url)
	if handler == nil {
		o.say(chatID, unsupportedText)
		return false
	}

	if handler.Name() == HandlerYouTube {
		o.cfg.Sessions.Remember(chatID, url)
		return true
	}

	o.startJob(chatID, url, handler, ModeVideo, 0)
	return false
}

// SubmitSelection handles an inline keyboard press. messageID is the
// keyboard message; the orchestrator retires it itself when the press is
// terminal.
func (o *Orchestrator) SubmitSelection(chatID int64, messageID int, selection string) SelectionResult {
	url, ok := o.cfg.Sessions.Recall(chatID)
	if !ok {
		o.editOrSay(chatID, messageID, "❌ "+userMessages[KindStaleSession])
		return SelectionStale
	}

	if selection == "video" {
		return SelectionNeedQuality
	}

	mode, quality, ok := parseSelection(selection, o.cfg.Qualities)
	if !ok {
		o.log.Warn("unknown selection", zap.String("data", selection))
		return SelectionInvalid
	}

	handler := SelectHandler(o.cfg.Handlers, url)
	if handler == nil {
		o.editOrSay(chatID, messageID, unsupportedText)
		return SelectionInvalid
	}

	if messageID != 0 {
		if err := o.cfg.Messenger.DeleteStatus(chatID, messageID); err != nil {
			o.log.Debug("delete keyboard failed", zap.Error(err))
		}
	}
	o.cfg.Sessions.Forget(chatID)
	o.startJob(chatID, url, handler, mode, quality)
	return SelectionStarted
}

func parseSelection(data string, allowed []int) (Mode, int, bool) {
	if data == "audio" {
		return ModeAudio, 0, true
	}
	if q, ok := strings.CutPrefix(data, "video_"); ok {
		height, err := strconv.Atoi(q)
		if err != nil {
			return "", 0, false
		}
		for _, a := range allowed {
			if a == height {
				return ModeVideo, height, true
			}
		}
	}
	return "", 0, false
}

func (o *Orchestrator) startJob(chatID int64, url string, handler Handler, mode Mode, quality int) {
	if o.draining.Load() {
		o.say(chatID, "⏸ The bot is restarting, send the link again in a minute.")
		return
	}

	if o.cfg.MinDiskGB > 0 {
		if disk, err := util.DiskSpace(o.cfg.OutputDir); err == nil && disk.AvailGB < o.cfg.MinDiskGB {
			o.log.Error("low disk space", zap.Float64("availGB", disk.AvailGB))
			if o.cfg.Alerts != nil {
				o.cfg.Alerts.LowDiskSpace(disk.AvailGB)
			}
			o.say(chatID, "❌ Server is out of disk space. Try again later.")
			return
		}
	}

	job := &Job{
		ID:      uuid.New().String(),
		ChatID:  chatID,
		URL:     url,
		Handler: handler.Name(),
		Mode:    mode,
		Quality: quality,
	}
	o.cfg.Jobs.Add(job)

	o.inflight.Add(1)
	go o.runJob(job, handler)
}

func (o *Orchestrator) runJob(job *Job, handler Handler) {
	defer o.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("job panicked",
				zap.String("job", shortID(job.ID)), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			o.cfg.Jobs.Fail(job.ID, "internal error")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	defer cancel()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.cfg.Jobs.Fail(job.ID, "queue wait timed out")
		o.say(job.ChatID, "❌ "+userMessages[KindInternal])
		return
	}
	defer o.sem.Release(1)

	// Make room before pulling new bytes.
	o.cfg.Sweeper.SweepAged()

	prefix := shortID(job.ID)
	log := o.log.With(zap.String("job", prefix), zap.String("handler", handler.Name()))
	log.Info("job started",
		zap.String("url", job.URL), zap.String("mode", string(job.Mode)), zap.Int("quality", job.Quality))

	msgID, err := o.cfg.Messenger.SendStatus(job.ChatID, "⏳ Starting download...")
	if err != nil {
		log.Warn("status message failed", zap.Error(err))
	}

	o.cfg.Jobs.SetStatus(job.ID, JobDownloading)

	reporter := NewReporter(func(text string) {
		if msgID == 0 {
			return
		}
		if err := o.cfg.Messenger.EditStatus(job.ChatID, msgID, text); err != nil {
			log.Debug("progress edit failed", zap.Error(err))
		}
	}, 0)
	go reporter.Run()

	trackProgress := func(ev ProgressEvent) {
		if ev.Stage == StageConverting {
			o.cfg.Jobs.SetStatus(job.ID, JobConverting)
		} else if ev.Percent > 0 {
			o.cfg.Jobs.SetProgress(job.ID, ev.Percent)
		}
		reporter.Publish(ev)
	}

	opts := DownloadOptions{
		Mode:      job.Mode,
		Quality:   job.Quality,
		OutputDir: o.cfg.OutputDir,
		JobID:     prefix,
	}

	out, derr := handler.Download(ctx, job.URL, opts, trackProgress)
	reporter.Close()

	if derr != nil {
		o.failJob(job, msgID, derr, log)
		o.removeJobFiles(prefix)
		return
	}

	for _, path := range out.Files {
		o.cfg.Registry.MarkActive(path)
	}
	defer func() {
		for _, path := range out.Files {
			o.cfg.Registry.Unmark(path)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warn("cleanup failed", zap.String("file", path), zap.Error(err))
			}
		}
	}()

	if err := o.deliver(ctx, job, msgID, out, log); err != nil {
		o.failJob(job, msgID, err, log)
		return
	}

	o.cfg.Jobs.SetStatus(job.ID, JobComplete)
	log.Info("job complete", zap.Int("files", len(out.Files)))
}

// deliver routes each output by size: inline send under the Telegram cap,
// external upload above it. Albums go as one media group when every item
// fits inline and the batch is small enough.
func (o *Orchestrator) deliver(ctx context.Context, job *Job, msgID int, out *DownloadOutput, log *zap.Logger) error {
	files := out.Files

	if out.MediaType.IsAlbum() && len(files) > 1 && o.allWithinInlineLimit(files) {
		o.cfg.Jobs.SetStatus(job.ID, JobSending)
		o.editOrSay(job.ChatID, msgID, "📤 Sending to Telegram...")

		// Media groups take 2-10 entries, so a trailing singleton goes out
		// as a plain send.
		for start := 0; start < len(files); start += maxAlbumItems {
			end := start + maxAlbumItems
			if end > len(files) {
				end = len(files)
			}
			chunk := files[start:end]
			if len(chunk) == 1 {
				if err := o.sendFile(job.ChatID, chunk[0], out.MediaType); err != nil {
					return WrapError(KindDelivery, "send failed", err)
				}
				continue
			}
			items := make([]AlbumItem, 0, len(chunk))
			for _, f := range chunk {
				items = append(items, AlbumItem{Path: f, Photo: isPhotoFile(f)})
			}
			if err := o.cfg.Messenger.SendAlbum(job.ChatID, items); err != nil {
				return WrapError(KindDelivery, "album send failed", err)
			}
		}
		o.retireStatus(job.ChatID, msgID)
		return nil
	}

	var singleLink string
	for _, f := range files {
		size, err := util.FileSize(f)
		if err != nil {
			return WrapError(KindDelivery, "stat output file", err)
		}

		if size > maxInlineFileSize {
			sizeMB := float64(size) / (1024 * 1024)
			o.cfg.Jobs.SetStatus(job.ID, JobUploading)
			o.editOrSay(job.ChatID, msgID,
				fmt.Sprintf("📤 File is too large for Telegram (%.1f MB), uploading to gofile.io...", sizeMB))

			link, err := o.cfg.Uploader.Upload(ctx, f)
			if err != nil {
				return WrapError(KindUploadFailed, "gofile upload failed", err)
			}
			log.Info("uploaded oversized file", zap.Float64("sizeMB", sizeMB))

			linkText := fmt.Sprintf("✅ File is too large for Telegram (%.1f MB)\n\n🔗 Download it here:\n%s", sizeMB, link)
			if len(files) == 1 {
				singleLink = linkText
			} else {
				o.say(job.ChatID, linkText)
			}
			continue
		}

		o.cfg.Jobs.SetStatus(job.ID, JobSending)
		if err := o.sendFile(job.ChatID, f, out.MediaType); err != nil {
			return WrapError(KindDelivery, "send failed", err)
		}
	}

	if singleLink != "" {
		o.editOrSay(job.ChatID, msgID, singleLink)
		return nil
	}
	o.retireStatus(job.ChatID, msgID)
	return nil
}

func (o *Orchestrator) sendFile(chatID int64, path string, mediaType MediaType) error {
	switch {
	case mediaType == MediaAudio:
		return o.cfg.Messenger.SendAudio(chatID, path)
	case isPhotoFile(path):
		return o.cfg.Messenger.SendPhoto(chatID, path)
	case mediaType == MediaVideo || mediaType.IsAlbum():
		return o.cfg.Messenger.SendVideo(chatID, path)
	default:
		return o.cfg.Messenger.SendDocument(chatID, path)
	}
}

func (o *Orchestrator) allWithinInlineLimit(files []string) bool {
	for _, f := range files {
		size, err := util.FileSize(f)
		if err != nil || size > maxInlineFileSize {
			return false
		}
	}
	return true
}

func (o *Orchestrator) failJob(job *Job, msgID int, err error, log *zap.Logger) {
	log.Error("job failed", zap.Error(err))
	o.cfg.Jobs.Fail(job.ID, err.Error())
	o.editOrSay(job.ChatID, msgID, "❌ "+UserMessage(err))

	if o.cfg.Alerts == nil {
		return
	}
	if KindOf(err) == KindExtractionBlocked {
		o.cfg.Alerts.CookieIssue(err.Error())
	}
	o.cfg.Alerts.JobFailed(shortID(job.ID), job.URL, err)
}

// removeJobFiles clears partial outputs a failed handler left behind.
func (o *Orchestrator) removeJobFiles(prefix string) {
	files, err := collectOutputs(o.cfg.OutputDir, prefix)
	if err != nil {
		return
	}
	for _, f := range files {
		if o.cfg.Registry.IsActive(f) {
			continue
		}
		os.Remove(f)
	}
}

func (o *Orchestrator) say(chatID int64, text string) {
	if err := o.cfg.Messenger.SendText(chatID, text); err != nil {
		o.log.Warn("send message failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (o *Orchestrator) editOrSay(chatID int64, messageID int, text string) {
	if messageID != 0 {
		if err := o.cfg.Messenger.EditStatus(chatID, messageID, text); err == nil {
			return
		}
	}
	o.say(chatID, text)
}

func (o *Orchestrator) retireStatus(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := o.cfg.Messenger.DeleteStatus(chatID, messageID); err != nil {
		o.log.Debug("delete status failed", zap.Error(err))
	}
}

// Shutdown stops intake, waits up to timeout for in-flight jobs, then
// clears the download directory. Files still registry-marked by abandoned
// jobs survive this sweep and are collected on next startup.
func (o *Orchestrator) Shutdown(timeout time.Duration) {
	o.draining.Store(true)

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.log.Info("all jobs finished")
	case <-time.After(timeout):
		o.log.Warn("shutdown timeout, abandoning in-flight jobs")
	}

	o.cfg.Sweeper.SweepAll()
}

func extractURL(text string) string {
	return urlRe.FindString(text)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
