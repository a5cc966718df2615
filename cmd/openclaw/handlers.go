package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/config"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/eventlog"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/gateway"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/skills"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// newLogger builds the process logger from config, with --debug forcing
// the level down.
func newLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// runServe loads config, wires the gateway, and serves until a signal.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, debug)
	slog.SetDefault(logger)

	g, err := gateway.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return g.Run(ctx)
}

type eventsOptions struct {
	configPath string
	eventType  string
	tool       string
	agent      string
	search     string
	since      string
	limit      int
	failures   bool
	stats      bool
}

// runEvents queries the event log directly, without a running gateway.
func runEvents(ctx context.Context, out io.Writer, opts eventsOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log, err := eventlog.Open(cfg.Storage.EventLog)
	if err != nil {
		return err
	}
	defer log.Close()

	if opts.stats {
		stats, err := log.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)
	}

	filter := eventlog.Filter{
		Type:    models.EventType(opts.eventType),
		Tool:    opts.tool,
		AgentID: opts.agent,
		Limit:   opts.limit,
	}
	if opts.failures {
		failed := false
		filter.Success = &failed
	}
	if opts.since != "" {
		since, err := parseSince(opts.since)
		if err != nil {
			return err
		}
		filter.Since = since
	}

	var entries []models.EventLogEntry
	if opts.search != "" {
		entries, err = log.Search(ctx, opts.search, filter)
	} else {
		entries, err = log.Entries(ctx, filter)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := printJSON(out, entry); err != nil {
			return err
		}
	}
	return nil
}

// parseSince accepts an RFC3339 timestamp or a duration back from now.
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want RFC3339 or duration)", s)
}

// runSkills lists discovered skills grouped source, enabled state, and
// tool count.
func runSkills(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loader := skills.NewLoader(skills.Dirs{
		Bundled:    cfg.Storage.Skills.Bundled,
		Curated:    cfg.Storage.Skills.Curated,
		Forged:     cfg.Storage.Skills.Forged,
		Quarantine: cfg.Storage.Skills.Quarantine,
	})
	set, err := loader.Load()
	if err != nil {
		return err
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name < set[j].Name })

	if len(set) == 0 {
		fmt.Fprintln(out, "no skills found")
		return nil
	}
	for _, s := range set {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "%-24s %-10s %-8s %d tool(s)\t%s\n",
			s.Name, s.Source, state, len(s.Tools), s.Description)
	}
	return nil
}

// runSchema prints the config JSON Schema.
func runSchema(out io.Writer) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(schema))
	return err
}

func runVersion(out io.Writer) error {
	_, err := fmt.Fprintf(out, "openclaw %s (commit %s, built %s)\n", version, commit, date)
	return err
}

func printJSON(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
