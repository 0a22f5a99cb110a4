package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier pushes admin alerts to a Telegram chat, reusing the bot token
// unless a dedicated alert token is configured. Alerts are fire-and-forget:
// a dead Telegram API never blocks or fails a job.
type Notifier struct {
	token   string
	chatID  int64
	apiBase string
	httpc   *http.Client
	log     *zap.Logger

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

func NewNotifier(token string, chatID int64, log *zap.Logger) *Notifier {
	return &Notifier{
		token:     token,
		chatID:    chatID,
		apiBase:   "https://api.telegram.org",
		httpc:     &http.Client{Timeout: 15 * time.Second},
		log:       log,
		cooldowns: make(map[string]time.Time),
	}
}

// Enabled reports whether alerts are configured at all.
func (n *Notifier) Enabled() bool {
	return n != nil && n.token != "" && n.chatID != 0
}

// send posts one alert, dropping it when the category fired within its
// cooldown window.
func (n *Notifier) send(category string, cooldown time.Duration, text string) {
	if !n.Enabled() {
		return
	}

	n.mu.Lock()
	now := time.Now()
	if cooldown > 0 {
		if last, ok := n.cooldowns[category]; ok && now.Sub(last) < cooldown {
			n.mu.Unlock()
			return
		}
	}
	n.cooldowns[category] = now
	n.mu.Unlock()

	body, _ := json.Marshal(map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})

	go func() {
		url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
		resp, err := n.httpc.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			n.log.Warn("alert send failed", zap.String("category", category), zap.Error(err))
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			n.log.Warn("alert rejected", zap.String("category", category), zap.Int("status", resp.StatusCode))
		}
	}()
}

func (n *Notifier) BotStarted(version string) {
	n.send("start", 0, fmt.Sprintf("🟢 snag %s is up", version))
}

func (n *Notifier) BotStopping() {
	n.send("stop", 0, "🟠 snag is shutting down")
}

func (n *Notifier) JobFailed(jobID, url string, err error) {
	n.send("job", 5*time.Second, fmt.Sprintf("🔴 Download failed\nJob: %s\nURL: %s\nError: %s",
		jobID, truncate(url, 200), truncate(err.Error(), 500)))
}

func (n *Notifier) LowDiskSpace(availGB float64) {
	n.send("disk", 10*time.Minute, fmt.Sprintf("🟠 Low disk space: %.1f GB available in the download dir", availGB))
}

func (n *Notifier) CookieIssue(details string) {
	n.send("cookie", time.Minute, "🟠 Extraction blocked, cookies may be stale or missing\n"+truncate(details, 500))
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
