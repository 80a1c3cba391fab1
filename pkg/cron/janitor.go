package cron

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sipeed/picotts/pkg/logger"
)

// SweepArtifacts removes audio artifacts under dir last written before
// now-maxAge, together with temporary files an interrupted write left
// behind. A missing dir is not an error.
func SweepArtifacts(dir string, maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !isArtifact(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func isArtifact(name string) bool {
	if strings.HasSuffix(name, ".mp3") {
		return true
	}
	// .<name>.mp3.<uuid>.tmp
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") && strings.Contains(name, ".mp3.")
}

// ArtifactJanitor returns a job that sweeps dir on every run.
func ArtifactJanitor(dir string, maxAge time.Duration) JobHandler {
	return func(_ context.Context, now time.Time) error {
		removed, err := SweepArtifacts(dir, maxAge, now)
		if removed > 0 {
			logger.InfoCF("cron", "Removed expired speech artifacts", map[string]any{
				"dir":     dir,
				"removed": removed,
			})
		}
		return err
	}
}
