// Package state persists per-agent status snapshots as JSON files so a
// crashed or restarted session can see where each agent left off.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shellcraft/pkg/config"
	"shellcraft/pkg/utils"
)

// AgentStatus is one agent's persisted state.
type AgentStatus struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Extra     map[string]any `json:"extra,omitempty"`
	AgentID   string         `json:"agent_id"`
	State     string         `json:"state"`
	Goal      string         `json:"goal,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// Agent states.
const (
	StateIdle     = "IDLE"
	StatePlanning = "PLANNING"
	StateWorking  = "WORKING"
	StateWaiting  = "WAITING"
	StateDone     = "DONE"
	StateError    = "ERROR"
)

// Store reads and writes agent status files under .agent/state/.
type Store struct {
	mu sync.Mutex
}

// NewStore returns a store rooted in the configured agent directory.
func NewStore() *Store {
	return &Store{}
}

// Set writes the status snapshot for an agent atomically.
func (s *Store) Set(status AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.AgentID == "" {
		return fmt.Errorf("agent status requires an agent ID")
	}
	status.UpdatedAt = time.Now().UTC()

	path, err := statusPath(status.AgentID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status for %s: %w", status.AgentID, err)
	}
	return utils.AtomicWrite(path, data)
}

// Get reads an agent's status. Missing files return ok=false.
func (s *Store) Get(agentID string) (AgentStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := statusPath(agentID)
	if err != nil {
		return AgentStatus{}, false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return AgentStatus{}, false, nil
	}
	if err != nil {
		return AgentStatus{}, false, fmt.Errorf("failed to read status for %s: %w", agentID, err)
	}
	var status AgentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return AgentStatus{}, false, fmt.Errorf("corrupt status file for %s: %w", agentID, err)
	}
	return status, true, nil
}

// List returns every stored agent status.
func (s *Store) List() ([]AgentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, err := config.AgentPath("state")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}
	var out []AgentStatus
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "STATUS_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var status AgentStatus
		if json.Unmarshal(data, &status) == nil {
			out = append(out, status)
		}
	}
	return out, nil
}

// Clear removes an agent's status file.
func (s *Store) Clear(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := statusPath(agentID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear status for %s: %w", agentID, err)
	}
	return nil
}

func statusPath(agentID string) (string, error) {
	safe := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, agentID)
	return config.AgentPath("state", fmt.Sprintf("STATUS_%s.json", safe))
}
