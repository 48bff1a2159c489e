// Package memory persists conversational memory across sessions in
// .agent/memory.json: a rolling window of recent exchanges plus durable
// facts the user asked the assistant to remember.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"shellcraft/pkg/config"
	"shellcraft/pkg/utils"
)

const (
	fileName          = "memory.json"
	shortTermCapacity = 20
)

// Exchange is one user/assistant round trip.
type Exchange struct {
	Timestamp time.Time `json:"ts"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
}

// Fact is a durable remembered statement.
type Fact struct {
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
}

type memoryFile struct {
	ShortTerm []Exchange `json:"short_term"`
	LongTerm  []Fact     `json:"long_term"`
}

// Memory is the session memory store.
type Memory struct {
	mu   sync.Mutex
	data memoryFile
}

// Load reads memory.json, starting fresh when absent or corrupt.
func Load() (*Memory, error) {
	m := &Memory{}
	path, err := config.AgentPath(fileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}
	if err := json.Unmarshal(data, &m.data); err != nil {
		// Corrupt memory starts over rather than blocking the session.
		m.data = memoryFile{}
	}
	return m, nil
}

func (m *Memory) save() error {
	path, err := config.AgentPath(fileName)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	return utils.AtomicWrite(path, data)
}

// AddExchange records one round trip, evicting the oldest beyond capacity.
func (m *Memory) AddExchange(user, assistant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.ShortTerm = append(m.data.ShortTerm, Exchange{
		Timestamp: time.Now().UTC(),
		User:      user,
		Assistant: assistant,
	})
	if len(m.data.ShortTerm) > shortTermCapacity {
		m.data.ShortTerm = m.data.ShortTerm[len(m.data.ShortTerm)-shortTermCapacity:]
	}
	return m.save()
}

// Remember stores a durable fact.
func (m *Memory) Remember(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("cannot remember an empty fact")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.data.LongTerm {
		if f.Text == text {
			return nil
		}
	}
	m.data.LongTerm = append(m.data.LongTerm, Fact{Timestamp: time.Now().UTC(), Text: text})
	return m.save()
}

// Facts returns the durable facts, oldest first.
func (m *Memory) Facts() []Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Fact, len(m.data.LongTerm))
	copy(out, m.data.LongTerm)
	return out
}

// Recent returns up to n recent exchanges, oldest first.
func (m *Memory) Recent(n int) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.data.ShortTerm) - n
	if start < 0 {
		start = 0
	}
	out := make([]Exchange, len(m.data.ShortTerm)-start)
	copy(out, m.data.ShortTerm[start:])
	return out
}

// PromptContext renders memory as a system prompt fragment, empty when
// there is nothing to carry over.
func (m *Memory) PromptContext() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data.LongTerm) == 0 && len(m.data.ShortTerm) == 0 {
		return ""
	}
	var b strings.Builder
	if len(m.data.LongTerm) > 0 {
		b.WriteString("Remembered facts:\n")
		for _, f := range m.data.LongTerm {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	if len(m.data.ShortTerm) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, e := range m.data.ShortTerm {
			fmt.Fprintf(&b, "user: %s\nassistant: %s\n", e.User, e.Assistant)
		}
	}
	return b.String()
}
