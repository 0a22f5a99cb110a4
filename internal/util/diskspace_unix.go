//go:build !windows

package util

import (
	"syscall"
)

type DiskInfo struct {
	AvailGB float64
	TotalGB float64
}

func DiskSpace(path string) (DiskInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return DiskInfo{}, err
	}
	return DiskInfo{
		AvailGB: float64(stat.Bavail*uint64(stat.Bsize)) / (1024 * 1024 * 1024),
		TotalGB: float64(stat.Blocks*uint64(stat.Bsize)) / (1024 * 1024 * 1024),
	}, nil
}
