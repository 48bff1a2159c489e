package editor

import (
	"os"
	"path/filepath"
	"testing"

	"shellcraft/pkg/config"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFile(dir, "src/main.go", "package main\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "src", "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package main\n" {
		t.Errorf("content = %q", string(data))
	}
}

func TestWriteFileRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFile(dir, "../outside.txt", "x"); err == nil {
		t.Error("path escaping the workspace must be rejected")
	}
}

func TestApplyPatchEmpty(t *testing.T) {
	if err := ApplyPatch(t.TempDir(), "   \n"); err == nil {
		t.Error("empty patch should be an error")
	}
}

func TestApplyPatchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(config.ResetForTest)
	if err := config.Load(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "greet.txt"), []byte("hello\nworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	patch := `--- greet.txt
+++ greet.txt
@@ -1,2 +1,2 @@
-hello
+goodbye
 world
`
	err := ApplyPatch(dir, patch)
	if err != nil {
		t.Skipf("patch(1) unavailable or incompatible: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "greet.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "goodbye\nworld\n" {
		t.Errorf("patched content = %q", string(data))
	}
}

func TestGuessEditor(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")
	if got := GuessEditor(); got != "nano" {
		t.Errorf("GuessEditor = %q, want nano", got)
	}

	t.Setenv("VISUAL", "code")
	if got := GuessEditor(); got != "code" {
		t.Errorf("VISUAL should win, got %q", got)
	}

	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")
	if got := GuessEditor(); got != "vi" {
		t.Errorf("fallback = %q, want vi", got)
	}
}
