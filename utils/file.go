package utils

import (
	"os"
	"path/filepath"
)

// ResolvePath joins a relative path onto base. Absolute and empty paths are returned as is.
func ResolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// EnsureDir creates dir and its parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}
