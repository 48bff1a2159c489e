package runner

import (
	"os"
	"path/filepath"
	"testing"

	"shellcraft/pkg/config"
)

func loadTestConfig(t *testing.T) {
	t.Helper()
	t.Cleanup(config.ResetForTest)
	if err := config.Load(t.TempDir()); err != nil {
		t.Fatal(err)
	}
}

func TestGuardCheckDenylist(t *testing.T) {
	loadTestConfig(t)
	tests := []struct {
		command string
		want    GuardDecision
	}{
		{"rm -rf / --no-preserve-root", GuardDeny},
		{"sudo apt install jq", GuardDeny},
		{"dd if=/dev/zero of=/dev/sda", GuardDeny},
		{"ls -la", GuardConfirm},
		{"go test ./...", GuardConfirm},
	}
	for _, tt := range tests {
		if got := GuardCheck(tt.command); got != tt.want {
			t.Errorf("GuardCheck(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestGuardCheckDenyWinsOverUnsafe(t *testing.T) {
	loadTestConfig(t)
	config.UpdateUnsafe(true)
	if got := GuardCheck("sudo rm -rf /tmp/x"); got != GuardDeny {
		t.Errorf("deny must hold in unsafe mode, got %v", got)
	}
	if got := GuardCheck("go build ./..."); got != GuardAllow {
		t.Errorf("unsafe mode should allow ordinary commands, got %v", got)
	}
}

func TestGuardCheckAllowlistPrefix(t *testing.T) {
	dir := t.TempDir()
	yaml := "allowlist:\n  - 'go '\n  - 'git status'\n"
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(config.ResetForTest)
	if err := config.Load(dir); err != nil {
		t.Fatal(err)
	}

	if got := GuardCheck("go vet ./..."); got != GuardAllow {
		t.Errorf("allowlisted prefix should pass, got %v", got)
	}
	if got := GuardCheck("git push"); got != GuardConfirm {
		t.Errorf("non-allowlisted command should confirm, got %v", got)
	}
}

func TestGuardCommandDeniedError(t *testing.T) {
	loadTestConfig(t)
	if err := GuardCommand("mkfs.ext4 /dev/sda1"); err == nil {
		t.Error("denied command must return an error")
	}
}
