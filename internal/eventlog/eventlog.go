// Package eventlog is the append-only operational log: every tool
// execution, provider fallback, forge event, and error lands here. It is
// backed by a local SQLite file with an FTS5 index for free-text search;
// when the index is unusable the same queries run as substring matches.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Log is the append-only event store. Writers serialize through a single
// connection; readers see a consistent snapshot per query.
type Log struct {
	db     *sql.DB
	logger *slog.Logger

	// fts records whether the FTS5 virtual table exists. When false,
	// Search goes straight to the LIKE fallback.
	fts bool
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger.With("component", "eventlog") }
}

// Open creates or opens the event log at path. The pool is capped at one
// connection so concurrent writers serialize instead of hitting
// SQLITE_BUSY. Use ":memory:" for an ephemeral log.
func Open(path string, opts ...Option) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Log{db: db, logger: slog.Default().With("component", "eventlog")}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) init() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		type        TEXT NOT NULL,
		timestamp   TEXT NOT NULL,
		tool        TEXT NOT NULL DEFAULT '',
		args        TEXT NOT NULL DEFAULT 'null',
		result      TEXT NOT NULL DEFAULT 'null',
		error       TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		agent_id    TEXT NOT NULL DEFAULT '',
		session_id  TEXT NOT NULL DEFAULT '',
		channel     TEXT NOT NULL DEFAULT '',
		success     INTEGER NOT NULL DEFAULT 0,
		tags        TEXT NOT NULL DEFAULT '[]'
	)`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}

	for _, ddl := range []string{
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tool ON events(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
	} {
		if _, err := l.db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	// The FTS index mirrors the searchable columns. Its absence is not
	// fatal: search degrades to substring matching.
	_, err = l.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS events_fts
		USING fts5(event_id UNINDEXED, tool, error, tags)`)
	if err != nil {
		l.logger.Warn("full-text index unavailable, search will use substring matching", "error", err)
		l.fts = false
		return nil
	}
	l.fts = true
	return nil
}

// Close releases the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Insert appends one entry. A missing ID is assigned; the timestamp
// defaults to now and is stored as ISO-8601 UTC. Args, Result, and Tags
// are serialized as JSON text and round-trip losslessly.
func (l *Log) Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	args, err := json.Marshal(entry.Args)
	if err != nil {
		return entry, fmt.Errorf("serialize args: %w", err)
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return entry, fmt.Errorf("serialize result: %w", err)
	}
	tags := []byte("[]")
	if len(entry.Tags) > 0 {
		if tags, err = json.Marshal(entry.Tags); err != nil {
			return entry, fmt.Errorf("serialize tags: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events (id, type, timestamp, tool, args, result, error, duration_ms, agent_id, session_id, channel, success, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Type), entry.Timestamp.Format(time.RFC3339Nano),
		entry.Tool, string(args), string(result), entry.Error, entry.DurationMS,
		entry.AgentID, entry.SessionID, string(entry.Channel), boolInt(entry.Success), string(tags),
	)
	if err != nil {
		return entry, fmt.Errorf("insert event: %w", err)
	}

	if l.fts {
		_, err := l.db.ExecContext(ctx,
			`INSERT INTO events_fts (event_id, tool, error, tags) VALUES (?, ?, ?, ?)`,
			entry.ID, entry.Tool, entry.Error, strings.Join(entry.Tags, " "))
		if err != nil {
			// The canonical row is in; only search freshness suffers.
			l.logger.Warn("full-text index insert failed", "id", entry.ID, "error", err)
		}
	}
	return entry, nil
}

// Filter narrows a query. Zero-valued fields match everything.
type Filter struct {
	Type      models.EventType
	Tool      string
	AgentID   string
	SessionID string
	Channel   models.ChannelType
	Success   *bool
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (f Filter) where() (string, []any) {
	var conds []string
	var params []any
	if f.Type != "" {
		conds = append(conds, "type = ?")
		params = append(params, string(f.Type))
	}
	if f.Tool != "" {
		conds = append(conds, "tool = ?")
		params = append(params, f.Tool)
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		params = append(params, f.AgentID)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		params = append(params, f.SessionID)
	}
	if f.Channel != "" {
		conds = append(conds, "channel = ?")
		params = append(params, string(f.Channel))
	}
	if f.Success != nil {
		conds = append(conds, "success = ?")
		params = append(params, boolInt(*f.Success))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		params = append(params, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		params = append(params, f.Until.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) == 0 {
		return "", params
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

const selectCols = `SELECT id, type, timestamp, tool, args, result, error, duration_ms, agent_id, session_id, channel, success, tags FROM events`

// Entries returns matching entries, newest first.
func (l *Log) Entries(ctx context.Context, f Filter) ([]models.EventLogEntry, error) {
	where, params := f.where()
	q := selectCols + where + " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := l.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search finds entries whose tool, error, or tags match the free text,
// further narrowed by the filter. The FTS index is the primary path; any
// index failure falls back to substring matching with identical filter
// semantics.
func (l *Log) Search(ctx context.Context, text string, f Filter) ([]models.EventLogEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return l.Entries(ctx, f)
	}

	if l.fts {
		entries, err := l.searchFTS(ctx, text, f)
		if err == nil {
			return entries, nil
		}
		l.logger.Warn("full-text search failed, falling back to substring match", "error", err)
	}
	return l.searchLike(ctx, text, f)
}

func (l *Log) searchFTS(ctx context.Context, text string, f Filter) ([]models.EventLogEntry, error) {
	where, params := f.where()
	cond := "id IN (SELECT event_id FROM events_fts WHERE events_fts MATCH ?)"
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	// Quote the query so user text is a term, not FTS syntax.
	params = append(params, `"`+strings.ReplaceAll(text, `"`, `""`)+`"`)

	q := selectCols + where + " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := l.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (l *Log) searchLike(ctx context.Context, text string, f Filter) ([]models.EventLogEntry, error) {
	where, params := f.where()
	cond := "(tool LIKE ? OR error LIKE ? OR tags LIKE ?)"
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	pattern := "%" + text + "%"
	params = append(params, pattern, pattern, pattern)

	q := selectCols + where + " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := l.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// PurgeOlderThan deletes entries strictly before cutoff and returns how
// many were removed.
func (l *Log) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ts := cutoff.UTC().Format(time.RFC3339Nano)
	if l.fts {
		_, err := l.db.ExecContext(ctx,
			`DELETE FROM events_fts WHERE event_id IN (SELECT id FROM events WHERE timestamp < ?)`, ts)
		if err != nil {
			l.logger.Warn("full-text index purge failed", "error", err)
		}
	}
	res, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanEntries(rows *sql.Rows) ([]models.EventLogEntry, error) {
	var out []models.EventLogEntry
	for rows.Next() {
		var (
			e                  models.EventLogEntry
			typ, ts, channel   string
			args, result, tags string
			success            int
		)
		if err := rows.Scan(&e.ID, &typ, &ts, &e.Tool, &args, &result, &e.Error,
			&e.DurationMS, &e.AgentID, &e.SessionID, &channel, &success, &tags); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = models.EventType(typ)
		e.Channel = models.ChannelType(channel)
		e.Success = success != 0
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		if args != "" && args != "null" {
			_ = json.Unmarshal([]byte(args), &e.Args)
		}
		if result != "" && result != "null" {
			_ = json.Unmarshal([]byte(result), &e.Result)
		}
		if tags != "" && tags != "[]" {
			_ = json.Unmarshal([]byte(tags), &e.Tags)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
