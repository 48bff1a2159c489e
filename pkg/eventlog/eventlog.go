// Package eventlog appends session events as JSON lines under
// .agent/events/, one file per day. The log is an audit trail: every plan,
// edit, command, and model call lands here in order.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"shellcraft/pkg/config"
)

// Event is one logged occurrence.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Fields    map[string]any `json:"fields,omitempty"`
	Kind      string         `json:"kind"`
	Agent     string         `json:"agent,omitempty"`
	Detail    string         `json:"detail"`
}

// Writer appends events to the current day's log file.
type Writer struct {
	mu sync.Mutex
}

// NewWriter returns an event writer rooted in the agent directory.
func NewWriter() *Writer {
	return &Writer{}
}

// Append writes one event. Failures are returned, not fatal; callers
// typically log and continue.
func (w *Writer) Append(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	path, err := config.AgentPath("events", ev.Timestamp.UTC().Format("2006-01-02")+".jsonl")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Emit is a convenience wrapper building an Event from parts.
func (w *Writer) Emit(kind, agent, detail string, fields map[string]any) error {
	return w.Append(Event{Kind: kind, Agent: agent, Detail: detail, Fields: fields})
}

// ReadDay returns the events logged on the given day, in order.
func (w *Writer) ReadDay(day time.Time) ([]Event, error) {
	path, err := config.AgentPath("events", day.UTC().Format("2006-01-02")+".jsonl")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if json.Unmarshal(scanner.Bytes(), &ev) == nil {
			events = append(events, ev)
		}
	}
	return events, scanner.Err()
}
