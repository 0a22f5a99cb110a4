package services

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes leftover files from the shared download directory.
// Registry-active files are always skipped, so a sweep can run at any time,
// including while downloads are in flight.
type Sweeper struct {
	dir      string
	registry *Registry
	maxAge   time.Duration
	log      *zap.Logger
	stop     chan struct{}
}

func NewSweeper(dir string, registry *Registry, maxAge time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		dir:      dir,
		registry: registry,
		maxAge:   maxAge,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// SweepAged removes inactive files older than the retention age. Called
// opportunistically before downloads and periodically from Start.
func (s *Sweeper) SweepAged() int {
	return s.sweep(s.maxAge)
}

// SweepAll removes every inactive file regardless of age. Runs at startup
// and during shutdown.
func (s *Sweeper) SweepAll() int {
	return s.sweep(0)
}

func (s *Sweeper) sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("sweep: read dir failed", zap.String("dir", s.dir), zap.Error(err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if s.registry.IsActive(path) {
			continue
		}
		if maxAge > 0 {
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				s.log.Warn("sweep: remove failed", zap.String("file", path), zap.Error(err))
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("swept stale files", zap.Int("removed", removed), zap.String("dir", s.dir))
	}
	return removed
}

// Start runs an aged sweep on a fixed interval until Stop is called.
func (s *Sweeper) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.SweepAged()
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
}
