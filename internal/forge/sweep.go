package forge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/cron"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultLookback bounds how far back a sweep reads failure history.
const DefaultLookback = 7 * 24 * time.Hour

// defaultFailureLimit caps the failures pulled per sweep.
const defaultFailureLimit = 500

// FailureSource supplies failed tool executions. Satisfied by
// *eventlog.Log.
type FailureSource interface {
	Failures(ctx context.Context, since time.Time, limit int) ([]models.ToolFailure, error)
}

// RequestSource supplies the user requests considered by the detector.
type RequestSource interface {
	Requests(ctx context.Context) []models.UserRequest
}

// Sweeper periodically runs the gap detector over recent history and,
// when a gap clears the confidence bar, forges a skill for it and sends
// it through the promotion gate.
type Sweeper struct {
	failures  FailureSource
	requests  RequestSource
	detector  *Detector
	gate      *Gate
	recorder  Recorder
	logger    *slog.Logger
	buildRoot string
	lookback  time.Duration

	// minConfidence gates automatic builds; gaps below it are only
	// announced.
	minConfidence float64
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithRequests sets the user-request source.
func WithRequests(src RequestSource) SweeperOption {
	return func(s *Sweeper) { s.requests = src }
}

// WithGate enables automatic build + promotion for strong gaps, building
// under buildRoot.
func WithGate(gate *Gate, buildRoot string) SweeperOption {
	return func(s *Sweeper) {
		s.gate = gate
		s.buildRoot = buildRoot
	}
}

// WithLookback overrides the failure history window.
func WithLookback(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithMinConfidence overrides the auto-build confidence bar.
func WithMinConfidence(c float64) SweeperOption {
	return func(s *Sweeper) { s.minConfidence = c }
}

// WithSweeperLogger sets the sweeper's logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger.With("component", "forge") }
}

// NewSweeper creates a sweeper over the failure source and detector.
func NewSweeper(failures FailureSource, detector *Detector, recorder Recorder, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		failures:      failures,
		detector:      detector,
		recorder:      recorder,
		logger:        slog.Default().With("component", "forge"),
		lookback:      DefaultLookback,
		minConfidence: 0.5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Task adapts the sweeper to a scheduler handler under the task id
// "forge.sweep".
func (s *Sweeper) Task() cron.Handler {
	return func(ctx context.Context, _ *cron.TaskContext) error {
		_, err := s.Sweep(ctx)
		return err
	}
}

// Sweep runs one detection pass and returns the gaps found. Every gap is
// announced as a gap_detected forge event; the strongest gap above the
// confidence bar is built and gated when a gate is configured.
func (s *Sweeper) Sweep(ctx context.Context) ([]models.CapabilityGap, error) {
	failures, err := s.failures.Failures(ctx, time.Now().Add(-s.lookback), defaultFailureLimit)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	var requests []models.UserRequest
	if s.requests != nil {
		requests = s.requests.Requests(ctx)
	}

	gaps := s.detector.DetectGaps(failures, requests)
	for _, gap := range gaps {
		s.announce(ctx, gap)
	}

	if s.gate != nil && len(gaps) > 0 && gaps[0].Confidence >= s.minConfidence {
		if err := s.forge(ctx, gaps[0]); err != nil {
			s.logger.Warn("forge attempt failed", "gap", gaps[0].SuggestedName, "error", err)
		}
	}
	return gaps, nil
}

// forge builds the gap's planned skill and runs it through the gate.
func (s *Sweeper) forge(ctx context.Context, gap models.CapabilityGap) error {
	plan := Plan(gap)
	s.recordEvent(ctx, models.ForgeBuildStarted, plan.Name, map[string]any{
		"category": string(gap.Category),
		"tools":    len(plan.Tools),
	})

	dir, err := Build(s.buildRoot, plan)
	if err != nil {
		s.recordEvent(ctx, models.ForgeBuildCompleted, plan.Name, map[string]any{"error": err.Error()})
		return err
	}
	s.recordEvent(ctx, models.ForgeBuildCompleted, plan.Name, map[string]any{"dir": dir})

	promoted, outcomes, err := s.gate.Promote(ctx, dir, plan)
	if err != nil {
		return err
	}
	s.logger.Info("forge cycle finished", "skill", plan.Name, "promoted", promoted, "tests", len(outcomes))
	return nil
}

func (s *Sweeper) announce(ctx context.Context, gap models.CapabilityGap) {
	s.recordEvent(ctx, models.ForgeGapDetected, gap.SuggestedName, map[string]any{
		"category":    string(gap.Category),
		"description": gap.Description,
		"frequency":   gap.Frequency,
		"confidence":  gap.Confidence,
	})
}

func (s *Sweeper) recordEvent(ctx context.Context, event models.ForgeEventType, name string, result map[string]any) {
	if s.recorder == nil {
		return
	}
	entry := models.EventLogEntry{
		Type:    models.EventForge,
		Tool:    name,
		Result:  result,
		Success: true,
		Tags:    []string{string(event)},
	}
	if _, err := s.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("event log append failed", "error", err)
	}
}
