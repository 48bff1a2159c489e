// Package persistence stores session history in SQLite under the agent
// directory: command runs, model usage, and timeline events. Writes go
// through an append queue so callers never block on disk.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"shellcraft/pkg/config"
	"shellcraft/pkg/logx"
)

const (
	dbFileName = "history.db"
	queueSize  = 256
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	name TEXT NOT NULL,
	command TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	attempts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS timeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT NOT NULL
);
`

// RunRecord is one persisted command execution.
type RunRecord struct {
	Timestamp time.Time
	Name      string
	Command   string
	ExitCode  int
	Duration  time.Duration
	Attempts  int
}

// UsageRecord is one persisted model call.
type UsageRecord struct {
	Timestamp        time.Time
	Model            string
	Provider         string
	PromptTokens     int
	CompletionTokens int
}

// TimelineEvent is one persisted session event.
type TimelineEvent struct {
	Timestamp time.Time
	Kind      string
	Detail    string
}

// Store wraps the SQLite database with an asynchronous append queue.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
	queue  chan func(*sql.DB)
	done   chan struct{}
}

// Open creates or opens the session database under .agent/ and starts the
// writer goroutine.
func Open() (*Store, error) {
	path, err := config.AgentPath(dbFileName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logx.NewLogger("persistence"),
		queue:  make(chan func(*sql.DB), queueSize),
		done:   make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

func (s *Store) writer() {
	defer close(s.done)
	for op := range s.queue {
		op(s.db)
	}
}

// enqueue hands a write to the writer goroutine, dropping it when the queue
// is saturated. History is best effort.
func (s *Store) enqueue(op func(*sql.DB)) {
	select {
	case s.queue <- op:
	default:
		s.logger.Warn("history queue full, dropping record")
	}
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}

// AppendRun records a command execution.
func (s *Store) AppendRun(rec RunRecord) {
	s.enqueue(func(db *sql.DB) {
		_, err := db.Exec(
			`INSERT INTO runs (ts, name, command, exit_code, duration_ms, attempts) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Timestamp.UTC().Format(time.RFC3339), rec.Name, rec.Command,
			rec.ExitCode, rec.Duration.Milliseconds(), rec.Attempts)
		if err != nil {
			s.logger.Warn("failed to record run: %v", err)
		}
	})
}

// AppendUsage records a model call.
func (s *Store) AppendUsage(rec UsageRecord) {
	s.enqueue(func(db *sql.DB) {
		_, err := db.Exec(
			`INSERT INTO usage (ts, model, provider, prompt_tokens, completion_tokens) VALUES (?, ?, ?, ?, ?)`,
			rec.Timestamp.UTC().Format(time.RFC3339), rec.Model, rec.Provider,
			rec.PromptTokens, rec.CompletionTokens)
		if err != nil {
			s.logger.Warn("failed to record usage: %v", err)
		}
	})
}

// AppendEvent records a timeline event.
func (s *Store) AppendEvent(kind, detail string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	s.enqueue(func(db *sql.DB) {
		if _, err := db.Exec(`INSERT INTO timeline (ts, kind, detail) VALUES (?, ?, ?)`, ts, kind, detail); err != nil {
			s.logger.Warn("failed to record event: %v", err)
		}
	})
}

// RecentRuns returns up to limit command runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, name, command, exit_code, duration_ms, attempts FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var ts string
		var durationMS int64
		if err := rows.Scan(&ts, &rec.Name, &rec.Command, &rec.ExitCode, &durationMS, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UsageTotals returns token totals per model for the whole session history.
func (s *Store) UsageTotals(ctx context.Context) (map[string]UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, provider, SUM(prompt_tokens), SUM(completion_tokens) FROM usage GROUP BY model, provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]UsageRecord)
	for rows.Next() {
		var rec UsageRecord
		if err := rows.Scan(&rec.Model, &rec.Provider, &rec.PromptTokens, &rec.CompletionTokens); err != nil {
			return nil, err
		}
		out[rec.Model] = rec
	}
	return out, rows.Err()
}

// Timeline returns up to limit events, oldest first.
func (s *Store) Timeline(ctx context.Context, limit int) ([]TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, kind, detail FROM (
			SELECT id, ts, kind, detail FROM timeline ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		var ts string
		if err := rows.Scan(&ts, &ev.Kind, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Flush blocks until every queued write so far has been applied.
func (s *Store) Flush() {
	ack := make(chan struct{})
	s.queue <- func(*sql.DB) { close(ack) }
	<-ack
}
