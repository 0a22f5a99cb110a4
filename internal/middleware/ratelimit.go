package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// maxTrackedClients bounds the per-IP map; new clients are refused at the cap.
const maxTrackedClients = 100000

// RateLimiter applies a per-IP sliding window to the status API.
type RateLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	clients map[string][]time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		max:     max,
		window:  window,
		clients: make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetIn := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.max))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetIn))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "Too many requests. Please slow down.",
				"resetIn": resetIn,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) take(ip string) (allowed bool, remaining, resetIn int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	requests := rl.clients[ip]
	filtered := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			filtered = append(filtered, t)
		}
	}

	if len(filtered) >= rl.max {
		resetSec := int(filtered[0].Add(rl.window).Sub(now).Seconds()) + 1
		rl.clients[ip] = filtered
		return false, 0, resetSec
	}

	if _, known := rl.clients[ip]; !known && len(rl.clients) >= maxTrackedClients {
		return false, 0, 60
	}

	filtered = append(filtered, now)
	rl.clients[ip] = filtered
	return true, rl.max - len(filtered), 0
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := time.Now().Add(-rl.window)
	for ip, requests := range rl.clients {
		filtered := requests[:0]
		for _, t := range requests {
			if t.After(windowStart) {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) == 0 {
			delete(rl.clients, ip)
			continue
		}
		rl.clients[ip] = filtered
	}
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
