package services

import (
	"sort"
	"sync"
	"time"
)

type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobDownloading JobStatus = "downloading"
	JobConverting  JobStatus = "converting"
	JobUploading   JobStatus = "uploading"
	JobSending     JobStatus = "sending"
	JobComplete    JobStatus = "complete"
	JobFailed      JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// Job is a point-in-time view of one download, exposed over the status API.
type Job struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"-"`
	URL        string    `json:"url"`
	Handler    string    `json:"handler"`
	Mode       Mode      `json:"mode"`
	Quality    int       `json:"quality,omitempty"`
	Status     JobStatus `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"-"`
}

// JobTracker holds job state behind its own mutex; callers mutate only
// through the setters and read through Snapshot copies.
type JobTracker struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	stop      chan struct{}
}

func NewJobTracker(retention time.Duration) *JobTracker {
	return &JobTracker{
		jobs:      make(map[string]*Job),
		retention: retention,
		stop:      make(chan struct{}),
	}
}

func (t *JobTracker) Add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job.CreatedAt = time.Now()
	job.Status = JobQueued
	t.jobs[job.ID] = job
}

func (t *JobTracker) SetStatus(id string, status JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	if status.Terminal() {
		job.FinishedAt = time.Now()
	}
}

func (t *JobTracker) SetProgress(id string, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Progress = percent
	}
}

func (t *JobTracker) Fail(id string, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Status = JobFailed
	job.Error = message
	job.FinishedAt = time.Now()
}

func (t *JobTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	active := 0
	for _, job := range t.jobs {
		if !job.Status.Terminal() {
			active++
		}
	}
	return active
}

// Snapshot returns value copies of every tracked job, newest first.
func (t *JobTracker) Snapshot() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// StartExpiry drops finished jobs past the retention window on an interval.
func (t *JobTracker) StartExpiry(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.expire()
			}
		}
	}()
}

func (t *JobTracker) Stop() {
	close(t.stop)
}

func (t *JobTracker) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for id, job := range t.jobs {
		if job.Status.Terminal() && now.Sub(job.FinishedAt) > t.retention {
			delete(t.jobs, id)
		}
	}
}
