// Package runner executes shell commands for the assistant: guardrail
// checks, retries with backoff, log teeing, task graphs with dependency
// ordering, file watching, and self-healing retries for failed
// verifications.
package runner

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"shellcraft/pkg/config"
)

// denylist blocks command substrings that are never worth the risk of an
// automated run.
var denylist = []string{
	"rm -rf /",
	"rm -rf ~",
	"sudo ",
	"mkfs",
	":(){",
	"> /dev/sd",
	"dd if=",
	"chmod -R 777 /",
	"curl | sh",
	"wget | sh",
	"shutdown",
	"reboot",
}

// GuardDecision is the outcome of a guardrail check.
type GuardDecision int

const (
	// GuardAllow lets the command run without prompting.
	GuardAllow GuardDecision = iota
	// GuardConfirm requires interactive confirmation.
	GuardConfirm
	// GuardDeny blocks the command.
	GuardDeny
)

// GuardCheck classifies a command against the denylist and allowlist.
// Denied commands stay denied even in unsafe mode.
func GuardCheck(command string) GuardDecision {
	lowered := strings.ToLower(command)
	for _, bad := range denylist {
		if strings.Contains(lowered, bad) {
			return GuardDeny
		}
	}

	cfg := config.GetConfig()
	if cfg.Unsafe || cfg.AutoApprove {
		return GuardAllow
	}
	for _, prefix := range cfg.Allowlist {
		if strings.HasPrefix(command, prefix) {
			return GuardAllow
		}
	}
	return GuardConfirm
}

// GuardCommand applies the guardrail policy to a command, prompting the user
// when confirmation is required. Returns an error when the command must not
// run.
func GuardCommand(command string) error {
	switch GuardCheck(command) {
	case GuardAllow:
		return nil
	case GuardDeny:
		return fmt.Errorf("command blocked by guardrail: %q", command)
	case GuardConfirm:
		if !Confirm(fmt.Sprintf("Run %q?", command)) {
			return fmt.Errorf("command declined: %q", command)
		}
		return nil
	}
	return nil
}

// Confirm asks a yes/no question on the terminal. Non-interactive sessions
// decline by default.
func Confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
