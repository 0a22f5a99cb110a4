package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryMarkUnmark(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsActive("/tmp/a.mp4"))
	assert.Equal(t, 0, r.Len())

	r.MarkActive("/tmp/a.mp4")
	r.MarkActive("/tmp/b.mp4")
	assert.True(t, r.IsActive("/tmp/a.mp4"))
	assert.Equal(t, 2, r.Len())

	// Marking twice is idempotent.
	r.MarkActive("/tmp/a.mp4")
	assert.Equal(t, 2, r.Len())

	r.Unmark("/tmp/a.mp4")
	assert.False(t, r.IsActive("/tmp/a.mp4"))
	assert.True(t, r.IsActive("/tmp/b.mp4"))
	assert.Equal(t, 1, r.Len())

	// Unmarking an unknown path is a no-op.
	r.Unmark("/tmp/never-marked.mp4")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/tmp/file-%d.mp4", i)
			r.MarkActive(path)
			r.IsActive(path)
			r.Unmark(path)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
