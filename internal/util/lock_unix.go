//go:build !windows

package util

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// FileLock is an advisory single-instance lock held for the lifetime of
// the process.
type FileLock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive non-blocking flock on path. It fails
// immediately when another process already holds it.
func AcquireLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another instance is already running (lock held on %s)", path)
	}
	f.Truncate(0)
	f.WriteString(strconv.Itoa(os.Getpid()))
	return &FileLock{file: f, path: path}, nil
}

func (l *FileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}
