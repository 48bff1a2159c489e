package planner

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileMeta describes one workspace file in the planning inventory.
type FileMeta struct {
	ModTime time.Time
	Path    string
	Size    int64
}

// builtinIgnores are always skipped regardless of .gitignore content.
var builtinIgnores = []string{
	".git", ".agent", "node_modules", "target", "vendor", "dist", "build",
	".idea", ".vscode", "__pycache__",
}

// FileInventory walks the workspace collecting file metadata, honoring
// .gitignore directory and suffix patterns plus the built-in ignore set.
// Paths are relative to root with forward slashes.
func FileInventory(root string) ([]FileMeta, error) {
	ignores := append([]string{}, builtinIgnores...)
	ignores = append(ignores, readGitignorePatterns(root)...)

	var files []FileMeta
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ignoredByPatterns(rel, d.Name(), ignores) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignoredByPatterns(rel, d.Name(), ignores) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		files = append(files, FileMeta{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// readGitignorePatterns extracts simple patterns from .gitignore: bare names,
// directory entries, and *.ext suffixes. Negations and nested globs are
// beyond what planning needs.
func readGitignorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns
}

func ignoredByPatterns(relPath, name string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "*."):
			if strings.HasSuffix(name, p[1:]) {
				return true
			}
		case p == name, p == relPath:
			return true
		case strings.HasPrefix(relPath, p+"/"):
			return true
		}
	}
	return false
}
