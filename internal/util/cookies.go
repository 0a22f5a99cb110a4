package util

import "os"

// HasCookies reports whether a usable cookies file exists at path.
func HasCookies(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// CookieArgs returns the yt-dlp arguments for the cookies file, or nil when
// no file is available and extraction should proceed anonymously.
func CookieArgs(path string) []string {
	if !HasCookies(path) {
		return nil
	}
	return []string{"--cookies", path}
}
