package diff

import (
	"strings"
	"testing"
)

func TestUnifiedIdentical(t *testing.T) {
	text, err := Unified("same\n", "same\n", "file.txt")
	if err != nil {
		t.Fatalf("Unified failed: %v", err)
	}
	if text != "" {
		t.Errorf("identical content should yield empty diff, got %q", text)
	}
}

func TestUnifiedShowsChanges(t *testing.T) {
	old := "line one\nline two\nline three\n"
	new := "line one\nline 2\nline three\n"
	text, err := Unified(old, new, "notes.txt")
	if err != nil {
		t.Fatalf("Unified failed: %v", err)
	}
	if !strings.Contains(text, "-line two") {
		t.Errorf("diff missing deletion: %s", text)
	}
	if !strings.Contains(text, "+line 2") {
		t.Errorf("diff missing addition: %s", text)
	}
	if !strings.Contains(text, "a/notes.txt") || !strings.Contains(text, "b/notes.txt") {
		t.Errorf("diff missing file labels: %s", text)
	}
}

func TestColorize(t *testing.T) {
	input := "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-old\n+new\n context"
	out := Colorize(input)

	if !strings.Contains(out, colorRed+"-old"+colorReset) {
		t.Error("deletion not colored red")
	}
	if !strings.Contains(out, colorGreen+"+new"+colorReset) {
		t.Error("addition not colored green")
	}
	if !strings.Contains(out, colorCyan+"@@ -1 +1 @@"+colorReset) {
		t.Error("hunk header not colored cyan")
	}
	if !strings.HasSuffix(out, " context") {
		t.Error("context line should be unstyled")
	}
}
