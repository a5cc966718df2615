package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Stats summarizes the log.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	SuccessRate  float64        `json:"success_rate"`
	TopTools     []NameCount    `json:"top_tools"`
	TopErrors    []NameCount    `json:"top_errors"`
	PerDay       map[string]int `json:"per_day"`
}

// NameCount is one ranked aggregation row.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// statsTopN bounds the top-tools and top-errors rankings.
const statsTopN = 5

// Stats aggregates totals, success rate, the most used tools, the most
// frequent errors, and per-day entry counts for the trailing 30 days
// (keys are "2006-01-02" UTC dates).
func (l *Log) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{PerDay: make(map[string]int)}

	var successes int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0) FROM events`).Scan(&s.TotalEntries, &successes)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	if s.TotalEntries > 0 {
		s.SuccessRate = float64(successes) / float64(s.TotalEntries)
	}

	s.TopTools, err = l.topCounts(ctx,
		`SELECT tool, COUNT(*) AS n FROM events WHERE tool != '' GROUP BY tool ORDER BY n DESC, tool ASC LIMIT ?`)
	if err != nil {
		return nil, fmt.Errorf("stats top tools: %w", err)
	}
	s.TopErrors, err = l.topCounts(ctx,
		`SELECT error, COUNT(*) AS n FROM events WHERE error != '' GROUP BY error ORDER BY n DESC, error ASC LIMIT ?`)
	if err != nil {
		return nil, fmt.Errorf("stats top errors: %w", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339Nano)
	rows, err := l.db.QueryContext(ctx,
		`SELECT substr(timestamp, 1, 10) AS day, COUNT(*) FROM events WHERE timestamp >= ? GROUP BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("stats per day: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("stats per day: %w", err)
		}
		s.PerDay[day] = n
	}
	return s, rows.Err()
}

func (l *Log) topCounts(ctx context.Context, query string) ([]NameCount, error) {
	rows, err := l.db.QueryContext(ctx, query, statsTopN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// Failures returns failed tool executions since the given time, newest
// first, shaped for the capability-gap detector.
func (l *Log) Failures(ctx context.Context, since time.Time, limit int) ([]models.ToolFailure, error) {
	success := false
	entries, err := l.Entries(ctx, Filter{
		Type:    models.EventToolExecution,
		Success: &success,
		Since:   since,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	failures := make([]models.ToolFailure, 0, len(entries))
	for _, e := range entries {
		failures = append(failures, models.ToolFailure{
			Tool:      e.Tool,
			Error:     e.Error,
			Timestamp: e.Timestamp,
		})
	}
	return failures, nil
}
