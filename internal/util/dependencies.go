package util

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// CheckDependencies verifies that the external tools every download path
// relies on are present before the bot starts accepting jobs.
func CheckDependencies(log *zap.Logger) error {
	for _, name := range []string{"yt-dlp", "ffmpeg"} {
		path, err := exec.LookPath(name)
		if err != nil {
			return fmt.Errorf("%s not found in PATH", name)
		}
		log.Debug("dependency found", zap.String("bin", name), zap.String("path", path))
	}
	return nil
}
