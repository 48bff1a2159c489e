package utils

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// AtomicWrite writes data to path via a temp file and rename so readers never
// observe a partial file. The mode of an existing file is preserved.
func AtomicWrite(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".shellcraft-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set mode on temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// ContentHash returns a short blake2b hash of data, used to dedupe proposed
// edits and name patch artifacts.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// WithinRoot reports whether path stays inside root after cleaning. Used to
// reject plan paths that try to escape the workspace.
func WithinRoot(root, path string) bool {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		path = rel
	}
	clean := filepath.Clean(path)
	return clean != ".." && !filepath.IsAbs(clean) &&
		clean != "." && !hasDotDotPrefix(clean)
}

func hasDotDotPrefix(path string) bool {
	return path == ".." || len(path) > 2 && path[:3] == ".."+string(filepath.Separator)
}
