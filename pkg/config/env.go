package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileName is the per-workspace environment file. Lines are KEY=VALUE; a
// leading "export " and surrounding quotes on the value are tolerated.
const EnvFileName = ".agent.env"

// LoadEnvFile reads the workspace env file and sets any variables that are
// not already present in the process environment. A missing file is fine.
func LoadEnvFile(workDir string) error {
	path := filepath.Join(workDir, EnvFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}
	return nil
}

// UpsertEnv sets or replaces a KEY=VALUE line in the workspace env file,
// preserving unrelated lines and comments.
func UpsertEnv(workDir, key, value string) error {
	if key == "" {
		return fmt.Errorf("env key cannot be empty")
	}
	path := filepath.Join(workDir, EnvFileName)

	var lines []string
	if data, err := os.ReadFile(path); err == nil {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	replaced := false
	for i, line := range lines {
		k, _, ok := parseEnvLine(line)
		if ok && k == key {
			lines[i] = fmt.Sprintf("%s=%s", key, value)
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// parseEnvLine extracts a key/value pair from one env file line. Comments and
// blank lines yield ok=false.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	value = strings.Trim(value, `"'`)
	return key, value, true
}
