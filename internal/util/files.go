package util

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	percentEscapeRe = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	unsafeCharRe    = regexp.MustCompile(`[^\w\s.-]`)
	underscoreRunRe = regexp.MustCompile(`_+`)
)

// SanitizeFilename rewrites a name so it is safe on any filesystem and free
// of URL-escape residue: %20 and other %XX escapes become underscores, any
// character outside [A-Za-z0-9_ \t.-] becomes an underscore, underscore runs
// collapse to one and leading/trailing underscores are trimmed.
func SanitizeFilename(name string) string {
	s := strings.ReplaceAll(name, "%20", "_")
	s = percentEscapeRe.ReplaceAllString(s, "_")
	s = unsafeCharRe.ReplaceAllString(s, "_")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		s = "file"
	}
	return s
}

// EnsureDir creates the directory if it does not exist yet.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// FileSize returns the size of a regular file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
