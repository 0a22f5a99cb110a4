package services

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/calv06/snag/internal/util"
)

var (
	percentRe    = regexp.MustCompile(`([\d.]+)%`)
	doneBytesRe  = regexp.MustCompile(`dl:(\d+)`)
	totalBytesRe = regexp.MustCompile(`total:(\d+)`)
	ytdlpErrorRe = regexp.MustCompile(`(?m)ERROR:\s*(.+)$`)
)

// progressTemplate makes yt-dlp emit machine-readable progress lines:
// a percent string plus raw byte counters (NA when the extractor cannot
// estimate a total, which leaves the fields unmatched).
const progressTemplate = "%(progress._percent_str)s dl:%(progress.downloaded_bytes)s total:%(progress.total_bytes)s"

// ytdlpJob describes one yt-dlp invocation. Handlers fill in the
// platform-specific parts and share the runner.
type ytdlpJob struct {
	URL         string
	OutputTmpl  string
	Format      string
	MergeFormat string
	ExtractMP3  bool
	Playlist    bool
	Headers     map[string]string
	CookiesFile string
}

func (j ytdlpJob) args() []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--restrict-filenames",
		"--progress-template", progressTemplate,
		"-o", j.OutputTmpl,
	}
	if j.Format != "" {
		args = append(args, "-f", j.Format)
	}
	if j.MergeFormat != "" {
		args = append(args, "--merge-output-format", j.MergeFormat)
	}
	if j.ExtractMP3 {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "192K")
	}
	if j.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	for k, v := range j.Headers {
		args = append(args, "--add-header", k+": "+v)
	}
	args = append(args, util.CookieArgs(j.CookiesFile)...)
	args = append(args, j.URL)
	return args
}

// runYtdlp executes yt-dlp, streaming parsed progress to onProgress. On
// failure the stderr output is folded into a typed DownloadError.
func runYtdlp(ctx context.Context, log *zap.Logger, job ytdlpJob, onProgress ProgressFunc) error {
	cmd := exec.CommandContext(ctx, "yt-dlp", job.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return WrapError(KindInternal, "attach stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return WrapError(KindInternal, "attach stderr", err)
	}

	log.Debug("running yt-dlp", zap.String("url", job.URL), zap.Strings("args", job.args()))

	if err := cmd.Start(); err != nil {
		return WrapError(KindInternal, "start yt-dlp", err)
	}

	// Both pipe scanners feed emit, so the threshold state needs a lock.
	var progressMu sync.Mutex
	var lastSent float64
	emit := func(ev ProgressEvent) {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		if ev.Stage == StageDownloading && ev.Percent > 0 {
			if ev.Percent < lastSent+2 && ev.Percent < 100 {
				progressMu.Unlock()
				return
			}
			lastSent = ev.Percent
		}
		progressMu.Unlock()
		onProgress(ev)
	}

	parse := func(line string) {
		if isPostProcessLine(line) {
			emit(ProgressEvent{Stage: StageConverting})
			return
		}
		if ev, ok := parseProgressLine(line); ok {
			emit(ev)
		}
	}

	var errLines []string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			parse(scanner.Text())
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			parse(line)
			errLines = append(errLines, line)
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return WrapError(KindInternal, "download cancelled", ctx.Err())
		}
		output := strings.Join(errLines, "\n")
		message := "yt-dlp failed"
		if m := ytdlpErrorRe.FindStringSubmatch(output); m != nil {
			message = m[1]
		}
		return WrapError(classifyExtractorOutput(output), message, err)
	}
	return nil
}

func isPostProcessLine(line string) bool {
	for _, marker := range []string{"[Merger]", "[ExtractAudio]", "[VideoConvertor]", "[Fixup"} {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func parseProgressLine(line string) (ProgressEvent, bool) {
	ev := ProgressEvent{Stage: StageDownloading}
	matched := false

	if m := percentRe.FindStringSubmatch(line); m != nil {
		if p, err := strconv.ParseFloat(m[1], 64); err == nil {
			ev.Percent = p
			matched = true
		}
	}
	if m := doneBytesRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			ev.DoneBytes = n
			matched = true
		}
	}
	if m := totalBytesRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			ev.TotalBytes = n
		}
	}

	if ev.Percent >= 100 {
		ev.Stage = StageFinished
	}
	return ev, matched
}

// collectOutputs lists the files a job produced, skipping yt-dlp partials.
// Names sort lexicographically, which keeps autonumbered album items in
// post order.
func collectOutputs(dir, jobID string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, jobID) {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Contains(name, ".part-Frag") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
