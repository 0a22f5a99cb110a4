package services

import (
	"sync"
	"time"
)

type sessionLink struct {
	url     string
	savedAt time.Time
}

// SessionStore remembers the last URL each chat submitted while the user is
// picking a format from the inline keyboard. Entries expire after the TTL so
// a days-old button press cannot start a download.
type SessionStore struct {
	mu    sync.Mutex
	links map[int64]sessionLink
	ttl   time.Duration
	stop  chan struct{}
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		links: make(map[int64]sessionLink),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
}

func (s *SessionStore) Remember(chatID int64, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[chatID] = sessionLink{url: url, savedAt: time.Now()}
}

// Recall returns the remembered URL for the chat, dropping it when expired.
func (s *SessionStore) Recall(chatID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[chatID]
	if !ok {
		return "", false
	}
	if time.Since(link.savedAt) > s.ttl {
		delete(s.links, chatID)
		return "", false
	}
	return link.url, true
}

func (s *SessionStore) Forget(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, chatID)
}

// StartCleanup drops expired sessions on a fixed interval until Stop.
func (s *SessionStore) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *SessionStore) Stop() {
	close(s.stop)
}

func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for chatID, link := range s.links {
		if now.Sub(link.savedAt) > s.ttl {
			delete(s.links, chatID)
		}
	}
}
