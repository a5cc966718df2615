package forge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/sandbox"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/skills"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Recorder appends forge events to the operational log.
type Recorder interface {
	Insert(ctx context.Context, entry models.EventLogEntry) (models.EventLogEntry, error)
}

// Refresher reloads the skill registry after a skill moves on disk.
// Satisfied by *skills.Registry.
type Refresher interface {
	Refresh() error
}

// Gate decides whether a built skill is promoted into the forged search
// path or quarantined. The skill earns promotion by passing every test
// declared in its plan, run in the sandbox.
type Gate struct {
	runner     *sandbox.Runner
	recorder   Recorder
	registry   Refresher
	logger     *slog.Logger
	forgedDir  string
	quarantine string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate's logger.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = logger.With("component", "forge") }
}

// WithRegistry sets the registry refreshed after promotion or quarantine.
func WithRegistry(r Refresher) GateOption {
	return func(g *Gate) { g.registry = r }
}

// NewGate creates a promotion gate moving skills into forgedDir on pass
// and quarantineDir on failure.
func NewGate(runner *sandbox.Runner, recorder Recorder, forgedDir, quarantineDir string, opts ...GateOption) *Gate {
	g := &Gate{
		runner:     runner,
		recorder:   recorder,
		logger:     slog.Default().With("component", "forge"),
		forgedDir:  forgedDir,
		quarantine: quarantineDir,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TestOutcome is one test's result, kept for the event log.
type TestOutcome struct {
	Name   string `json:"name"`
	Tool   string `json:"tool"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Promote runs the plan's tests against the built skill directory. All
// tests passing moves the skill under the forged path and enables it; any
// failure (or an empty test set) quarantines it. The returned bool
// reports promotion.
func (g *Gate) Promote(ctx context.Context, skillDir string, plan models.SkillPlan) (bool, []TestOutcome, error) {
	skill, err := skills.ParseSkillFile(filepath.Join(skillDir, skills.SkillFilename))
	if err != nil {
		return false, nil, fmt.Errorf("parse built skill: %w", err)
	}

	// Containment first: a skill whose entry point escapes its own
	// directory is rejected outright, no tests run.
	entries := make(map[string]string, len(skill.Tools))
	for _, tool := range skill.Tools {
		if tool.EntryPoint == "" {
			continue
		}
		resolved, err := sandbox.ResolveEntryPoint(skillDir, tool.EntryPoint)
		if err != nil {
			outcome := []TestOutcome{{Name: "entry point containment", Tool: tool.Name, Detail: err.Error()}}
			return false, outcome, g.quarantineSkill(ctx, skill.Name, skillDir, outcome)
		}
		entries[tool.Name] = resolved
	}

	outcomes := g.runTests(ctx, skill, skillDir, plan.TestCases)

	passed := len(outcomes) > 0
	for _, o := range outcomes {
		if !o.Passed {
			passed = false
			break
		}
	}
	if len(plan.TestCases) == 0 {
		passed = false
		outcomes = append(outcomes, TestOutcome{Name: "test set", Detail: "no test cases declared"})
	}

	if !passed {
		return false, outcomes, g.quarantineSkill(ctx, skill.Name, skillDir, outcomes)
	}

	dest := filepath.Join(g.forgedDir, skill.Name)
	if err := moveDir(skillDir, dest); err != nil {
		return false, outcomes, fmt.Errorf("move skill to forged path: %w", err)
	}
	g.record(ctx, models.ForgePromoted, skill.Name, outcomes, true)
	g.logger.Info("skill promoted", "skill", skill.Name, "tests", len(plan.TestCases))
	g.refresh()
	return true, outcomes, nil
}

func (g *Gate) runTests(ctx context.Context, skill *skills.Skill, skillDir string, cases []models.TestCase) []TestOutcome {
	entryFor := make(map[string]string, len(skill.Tools))
	for _, tool := range skill.Tools {
		entryFor[tool.Name] = tool.EntryPoint
	}

	outcomes := make([]TestOutcome, 0, len(cases))
	for _, tc := range cases {
		outcome := TestOutcome{Name: tc.Name, Tool: tc.Tool}
		entry := entryFor[tc.Tool]
		if entry == "" {
			outcome.Detail = "tool not declared by built skill"
			outcomes = append(outcomes, outcome)
			continue
		}
		args, _ := tc.Args.(map[string]any)
		result, err := g.runner.Execute(ctx, skillDir, entry, tc.Tool, args)
		switch {
		case err != nil:
			outcome.Detail = err.Error()
		case !shapeMatches(tc.Expect, result):
			outcome.Detail = fmt.Sprintf("result %v does not match expected shape %v", result, tc.Expect)
		default:
			outcome.Passed = true
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (g *Gate) quarantineSkill(ctx context.Context, name, skillDir string, outcomes []TestOutcome) error {
	dest := filepath.Join(g.quarantine, name)
	if err := moveDir(skillDir, dest); err != nil {
		return fmt.Errorf("move skill to quarantine: %w", err)
	}
	g.record(ctx, models.ForgeQuarantined, name, outcomes, false)
	g.logger.Warn("skill quarantined", "skill", name)
	g.refresh()
	return nil
}

func (g *Gate) refresh() {
	if g.registry == nil {
		return
	}
	if err := g.registry.Refresh(); err != nil {
		g.logger.Warn("registry refresh failed", "error", err)
	}
}

func (g *Gate) record(ctx context.Context, event models.ForgeEventType, skillName string, outcomes []TestOutcome, success bool) {
	if g.recorder == nil {
		return
	}
	entry := models.EventLogEntry{
		Type:    models.EventForge,
		Tool:    skillName,
		Result:  outcomes,
		Success: success,
		Tags:    []string{string(event)},
	}
	if _, err := g.recorder.Insert(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Warn("event log append failed", "error", err)
	}
}

// shapeMatches implements the structural compare: every leaf present in
// expect must exist at the same path in actual; extra actual fields are
// fine. Leaf values themselves are not compared.
func shapeMatches(expect, actual any) bool {
	switch e := expect.(type) {
	case nil:
		return true
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, sub := range e {
			got, present := a[key]
			if !present || !shapeMatches(sub, got) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) < len(e) {
			return false
		}
		for i, sub := range e {
			if !shapeMatches(sub, a[i]) {
				return false
			}
		}
		return true
	default:
		// Scalar leaf: existence at this path is what counts, and we are
		// already here, so it exists.
		return true
	}
}

// moveDir renames src to dest, replacing any previous build of the same
// skill.
func moveDir(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(src, dest)
}
