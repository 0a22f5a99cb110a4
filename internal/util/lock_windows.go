//go:build windows

package util

import (
	"fmt"
	"os"
)

// FileLock is an advisory single-instance lock held for the lifetime of
// the process.
type FileLock struct {
	file *os.File
	path string
}

// AcquireLock creates path exclusively. It fails when the file already
// exists, which on Windows stands in for flock.
func AcquireLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("another instance is already running (lock exists at %s)", path)
	}
	fmt.Fprintf(f, "%d", os.Getpid())
	return &FileLock{file: f, path: path}, nil
}

func (l *FileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}
