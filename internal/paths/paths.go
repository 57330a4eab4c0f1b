// Package paths builds recording file names and resolves home-relative directories.
package paths

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// ExpandHome replaces a leading "~" with the current user's home directory.
// $HOME is preferred; the user database is consulted when it is unset.
// Paths that do not start with "~" or "~/" are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home := os.Getenv("HOME")
	if home == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		home = u.HomeDir
	}
	if home == "" {
		return "", fmt.Errorf("resolve home directory: empty home for %q", path)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// DateDir returns the per-day directory name, YYYY-MM-DD in local time.
func DateDir(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// RecordingName returns YYYY-MM-DD-HH-MM-SS-mmm.<ext> in local time.
func RecordingName(t time.Time, ext string) string {
	local := t.Local()
	ms := local.Nanosecond() / int(time.Millisecond)
	return fmt.Sprintf("%s-%03d.%s", local.Format("2006-01-02-15-04-05"), ms, strings.TrimPrefix(ext, "."))
}

// RecordingPath returns <base>/<YYYY-MM-DD>/<YYYY-MM-DD-HH-MM-SS-mmm>.<ext>.
func RecordingPath(base string, t time.Time, ext string) string {
	return filepath.Join(base, DateDir(t), RecordingName(t, ext))
}

// ReplaceExt swaps the extension of path for ext. A path without an
// extension gets ext appended.
func ReplaceExt(path, ext string) string {
	ext = "." + strings.TrimPrefix(ext, ".")
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
