// Package audit keeps the activity journal: an unbounded, queryable history
// of every activity entry and alert across sessions, beside each home's
// ten-entry in-memory log.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homesim-core/internal/home"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one journaled activity entry.
type Entry struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Category   home.Category `json:"category"`
	Message    string        `json:"message"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AlertRecord is one journaled alert.
type AlertRecord struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Kind      home.AlertKind `json:"kind"`
	Message   string         `json:"message"`
	RaisedAt  time.Time      `json:"raised_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	SessionID string        // optional
	Category  home.Category // optional
	Limit     int           // default 50, max 200
	Offset    int
}

// ListResult contains a page of journal entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the journal operations used by the API.
type Repository interface {
	List(ctx context.Context, filter Filter) (*ListResult, error)
	ListAlerts(ctx context.Context, sessionID string, limit int) ([]AlertRecord, error)
}

// Logger defines the logging interface used by the Journal.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Journal stores activity entries and alerts in SQLite. It is safe for
// concurrent use; serialisation is left to database/sql.
type Journal struct {
	db     *sql.DB
	logger Logger
}

// NewJournal creates a journal over db. The activity_journal and
// alert_journal tables must exist (see migrations).
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger used to report write failures from HandleEvents.
func (j *Journal) SetLogger(logger Logger) {
	j.logger = logger
}

// HandleEvents journals the activity and alert events of one session.
// Tick events are ignored. Failures are logged, never returned: the journal
// must not hold up the session that produced the events.
func (j *Journal) HandleEvents(ctx context.Context, sessionID string, events []home.Event) {
	var entries []home.ActivityEntry
	var alerts []home.Alert
	for _, ev := range events {
		switch {
		case ev.Kind == home.EventActivity && ev.Activity != nil:
			entries = append(entries, *ev.Activity)
		case ev.Kind == home.EventAlert && ev.Alert != nil:
			alerts = append(alerts, *ev.Alert)
		}
	}

	if len(entries) > 0 {
		if err := j.Append(ctx, sessionID, entries); err != nil {
			j.logger.Error("journal append failed", "session_id", sessionID, "error", err)
		}
	}
	if len(alerts) > 0 {
		if err := j.AppendAlerts(ctx, sessionID, alerts); err != nil {
			j.logger.Error("journal alert append failed", "session_id", sessionID, "error", err)
		}
	}
}

// Append writes entries in one transaction.
func (j *Journal) Append(ctx context.Context, sessionID string, entries []home.ActivityEntry) error {
	return j.insertAll(ctx, len(entries),
		`INSERT INTO activity_journal (id, session_id, category, message, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		func(i int) []any {
			e := entries[i]
			return []any{uuid.NewString(), sessionID, string(e.Category), e.Message, formatTime(e.Timestamp)}
		})
}

// AppendAlerts writes alerts in one transaction.
func (j *Journal) AppendAlerts(ctx context.Context, sessionID string, alerts []home.Alert) error {
	return j.insertAll(ctx, len(alerts),
		`INSERT INTO alert_journal (id, session_id, kind, message, raised_at) VALUES (?, ?, ?, ?, ?)`,
		func(i int) []any {
			a := alerts[i]
			return []any{uuid.NewString(), sessionID, string(a.Kind), a.Message, formatTime(a.RaisedAt)}
		})
}

func (j *Journal) insertAll(ctx context.Context, n int, stmt string, row func(i int) []any) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting journal transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("preparing journal insert: %w", err)
	}
	defer prepared.Close()

	for i := 0; i < n; i++ {
		if _, err := prepared.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("inserting journal row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing journal: %w", err)
	}
	return nil
}

// List returns journal entries matching the filter, most recent first.
func (j *Journal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM activity_journal " + where //nolint:gosec // placeholders only
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT id, session_id, category, message, occurred_at FROM activity_journal " + where + //nolint:gosec // placeholders only
		" ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var category, occurredAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &category, &e.Message, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Category = home.Category(category)
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListAlerts returns the alerts raised in a session, most recent first.
func (j *Journal) ListAlerts(ctx context.Context, sessionID string, limit int) ([]AlertRecord, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, message, raised_at FROM alert_journal
		 WHERE session_id = ? ORDER BY raised_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alert journal: %w", err)
	}
	defer rows.Close()

	records := []AlertRecord{}
	for rows.Next() {
		var r AlertRecord
		var kind, raisedAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &kind, &r.Message, &raisedAt); err != nil {
			return nil, fmt.Errorf("scanning alert record: %w", err)
		}
		r.Kind = home.AlertKind(kind)
		if r.RaisedAt, err = parseTime(raisedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert journal: %w", err)
	}
	return records, nil
}

// Purge deletes everything journaled for a session and returns the number
// of activity rows removed.
func (j *Journal) Purge(ctx context.Context, sessionID string) (int64, error) {
	if _, err := j.db.ExecContext(ctx, "DELETE FROM alert_journal WHERE session_id = ?", sessionID); err != nil {
		return 0, fmt.Errorf("purging alert journal: %w", err)
	}
	res, err := j.db.ExecContext(ctx, "DELETE FROM activity_journal WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("purging journal: %w", err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", s, err)
	}
	return t, nil
}
