package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	payload := `default_model: gpt-4o
auto_approve: true
command_retries: 5
allowlist:
  - "go "
  - "git status"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ResetForTest)

	if err := Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := GetConfig()
	if cfg.DefaultModel != "gpt-4o" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if !cfg.AutoApprove {
		t.Error("AutoApprove should be true")
	}
	if cfg.CommandRetries != 5 {
		t.Errorf("CommandRetries = %d", cfg.CommandRetries)
	}
	if len(cfg.Allowlist) != 2 {
		t.Errorf("Allowlist = %v", cfg.Allowlist)
	}
	if cfg.WorkDir != dir {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, dir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(ResetForTest)
	dir := t.TempDir()
	if err := Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := GetConfig()
	if cfg.CommandRetries != 2 || cfg.MaxParallelTasks != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Cleanup(ResetForTest)
	t.Setenv("MODEL_ID", "o3-mini")
	t.Setenv("SHELLCRAFT_DRY_RUN", "1")

	if err := Load(t.TempDir()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := GetConfig()
	if cfg.DefaultModel != "o3-mini" {
		t.Errorf("MODEL_ID override not applied: %q", cfg.DefaultModel)
	}
	if !cfg.DryRun {
		t.Error("SHELLCRAFT_DRY_RUN override not applied")
	}
}

func TestUpdateSettersAreVisible(t *testing.T) {
	t.Cleanup(ResetForTest)
	UpdateDefaultModel("claude-sonnet-4-20250514")
	UpdateUnsafe(true)

	cfg := GetConfig()
	if cfg.DefaultModel != "claude-sonnet-4-20250514" || !cfg.Unsafe {
		t.Errorf("updates not visible: %+v", cfg)
	}
}
