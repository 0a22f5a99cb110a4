//go:build windows

package util

import (
	"syscall"
	"unsafe"
)

type DiskInfo struct {
	AvailGB float64
	TotalGB float64
}

func DiskSpace(path string) (DiskInfo, error) {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx := kernel32.NewProc("GetDiskFreeSpaceExW")

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return DiskInfo{}, err
	}

	ret, _, err := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if ret == 0 {
		return DiskInfo{}, err
	}

	return DiskInfo{
		AvailGB: float64(freeBytesAvailable) / (1024 * 1024 * 1024),
		TotalGB: float64(totalBytes) / (1024 * 1024 * 1024),
	}, nil
}
