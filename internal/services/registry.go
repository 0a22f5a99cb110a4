package services

import "sync"

// Registry tracks files owned by in-flight jobs so the sweeper never
// deletes from under an active download or send.
type Registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{paths: make(map[string]struct{})}
}

func (r *Registry) MarkActive(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path] = struct{}{}
}

func (r *Registry) Unmark(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *Registry) IsActive(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paths[path]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}
