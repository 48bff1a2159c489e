// Package diff renders unified diffs for terminal review.
package diff

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/term"
)

// ANSI sequences for colorized output.
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorCyan   = "\x1b[36m"
	colorBold   = "\x1b[1m"
)

// Unified produces a unified diff between old and new content labeled with
// path, with three lines of context. Empty when the contents match.
func Unified(old, new, path string) (string, error) {
	if old == new {
		return "", nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compute diff for %s: %w", path, err)
	}
	return text, nil
}

// Colorize wraps diff lines in ANSI colors: headers bold, hunks cyan,
// additions green, deletions red.
func Colorize(diffText string) string {
	var b strings.Builder
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(colorBold + line + colorReset)
		case strings.HasPrefix(line, "@@"):
			b.WriteString(colorCyan + line + colorReset)
		case strings.HasPrefix(line, "+"):
			b.WriteString(colorGreen + line + colorReset)
		case strings.HasPrefix(line, "-"):
			b.WriteString(colorRed + line + colorReset)
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Render returns the diff colorized when stdout is a terminal, plain
// otherwise.
func Render(old, new, path string) (string, error) {
	text, err := Unified(old, new, path)
	if err != nil || text == "" {
		return text, err
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return Colorize(text), nil
	}
	return text, nil
}
