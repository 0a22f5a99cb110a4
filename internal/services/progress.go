package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	editThrottle  = 500 * time.Millisecond
	barCells      = 20
	progressDepth = 64
)

// EditFunc applies one status-message edit in the chat.
type EditFunc func(text string)

// Reporter turns the raw event stream from a download worker into throttled
// status-message edits. It owns the pacing rules: at most one edit per
// throttle interval (terminal states excepted), percentages never move
// backwards, and once converting starts no download frame is shown again.
// Publish never blocks; events beyond the buffer are dropped.
type Reporter struct {
	events   chan ProgressEvent
	edit     EditFunc
	interval time.Duration
	done     chan struct{}
}

func NewReporter(edit EditFunc, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = editThrottle
	}
	return &Reporter{
		events:   make(chan ProgressEvent, progressDepth),
		edit:     edit,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Publish queues a progress event without blocking the download goroutine.
func (r *Reporter) Publish(ev ProgressEvent) {
	select {
	case r.events <- ev:
	default:
	}
}

// Run drains events until Close. It is the only goroutine that touches the
// chat, so message edits never race.
func (r *Reporter) Run() {
	defer close(r.done)

	var lastEdit time.Time
	var lastPercent float64
	var lastText string
	converting := false

	for ev := range r.events {
		var text string

		switch ev.Stage {
		case StageConverting:
			if converting {
				continue
			}
			converting = true
			text = "🔄 Converting..."

		case StageFinished:
			if converting || lastPercent >= 100 {
				continue
			}
			lastPercent = 100
			text = downloadingText(100)

		case StageDownloading:
			if converting {
				continue
			}
			if ev.Percent > 0 {
				if ev.Percent < lastPercent {
					continue
				}
				if ev.Percent < 100 && time.Since(lastEdit) < r.interval {
					continue
				}
				lastPercent = ev.Percent
				text = downloadingText(ev.Percent)
			} else if ev.DoneBytes > 0 {
				if time.Since(lastEdit) < r.interval {
					continue
				}
				text = fmt.Sprintf("⬇️ Downloading...\n%.1f MB", float64(ev.DoneBytes)/(1024*1024))
			} else {
				continue
			}
		}

		if text == "" || text == lastText {
			continue
		}
		lastEdit = time.Now()
		lastText = text
		r.edit(text)
	}
}

// Close stops the drain loop after pending events are applied.
func (r *Reporter) Close() {
	close(r.events)
	<-r.done
}

func downloadingText(percent float64) string {
	if percent > 100 {
		percent = 100
	}
	return fmt.Sprintf("⬇️ Downloading...\n%s %.1f%%", renderBar(percent), percent)
}

func renderBar(percent float64) string {
	filled := int(percent / 5)
	if filled > barCells {
		filled = barCells
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}
