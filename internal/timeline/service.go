// Package timeline journals monitor events (chat messages, dispatches,
// session expiry, escalations) into a local SQLite database.
package timeline

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event kinds.
const (
	KindChatMessage   = "chat_message"
	KindChatCleared   = "chat_cleared"
	KindChatStart     = "chat_start"
	KindChatStop      = "chat_stop"
	KindSessionExpiry = "session_expired"
	KindEscalation    = "sla_escalation"
	KindNudge         = "nudge"
	KindPrewarm       = "prewarm"
	KindInboxMark     = "inbox_mark"
	KindDispatchError = "dispatch_error"
)

// Event is one journal row.
type Event struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	TraceID   string    `json:"traceId,omitempty"`
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Agent     string    `json:"agent,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
}

// Service wraps the journal database.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the journal at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for older journals.
	_, _ = db.Exec(`ALTER TABLE events ADD COLUMN trace_id TEXT`)
	_, _ = db.Exec(`ALTER TABLE events ADD COLUMN metadata TEXT DEFAULT ''`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_trace ON events(trace_id)`)
	return &Service{db: db}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// AddEvent inserts evt. EventID and Timestamp are filled when empty.
func (s *Service) AddEvent(evt *Event) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(`
	INSERT INTO events (event_id, trace_id, timestamp, kind, agent, channel, summary, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID,
		evt.TraceID,
		evt.Timestamp.UTC(),
		evt.Kind,
		evt.Agent,
		evt.Channel,
		evt.Summary,
		evt.Metadata,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		evt.ID = id
	}
	return nil
}

// FilterArgs narrows ListEvents.
type FilterArgs struct {
	Agent string
	Kind  string
	Limit int
}

// ListEvents returns events newest first.
func (s *Service) ListEvents(filter FilterArgs) ([]Event, error) {
	query := `SELECT id, COALESCE(event_id,''), COALESCE(trace_id,''), timestamp, kind, COALESCE(agent,''), COALESCE(channel,''), COALESCE(summary,''), COALESCE(metadata,'') FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.Agent != "" {
		query += " AND agent = ?"
		args = append(args, filter.Agent)
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.TraceID, &e.Timestamp, &e.Kind, &e.Agent, &e.Channel, &e.Summary, &e.Metadata); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Journal is the write side of Service.
type Journal interface {
	AddEvent(evt *Event) error
}

// Record adds evt to j, logging instead of returning failures. A nil
// journal is a no-op.
func Record(j Journal, evt *Event) {
	if j == nil {
		return
	}
	if err := j.AddEvent(evt); err != nil {
		slog.Warn("Timeline write failed", "kind", evt.Kind, "error", err)
	}
}
