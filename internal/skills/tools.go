package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/sandbox"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
)

// Binder turns skill tools into executable registry tools. Trusted skills
// run their entry points directly with the process environment; forged
// skills go through the sandbox.
type Binder struct {
	sandbox *sandbox.Runner
	logger  *slog.Logger
}

// NewBinder creates a binder using the given sandbox runner.
func NewBinder(runner *sandbox.Runner, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{sandbox: runner, logger: logger.With("component", "skills")}
}

// Bind returns the executable tools of one skill. Documentation-only
// tools (no entry point) are skipped.
func (b *Binder) Bind(skill Skill) []tools.Tool {
	out := make([]tools.Tool, 0, len(skill.Tools))
	for _, st := range skill.Tools {
		if st.EntryPoint == "" {
			continue
		}
		out = append(out, b.bindTool(skill, st))
	}
	return out
}

// Sync replaces the registry's skill tools to match the given skill set:
// tools of enabled skills are (re)registered, tools of disabled or removed
// skills are dropped. Previously bound tool names are tracked so built-ins
// are never touched.
func (b *Binder) Sync(registry *tools.Registry, bound map[string]bool, skillSet []Skill) {
	next := make(map[string]bool)
	for _, skill := range skillSet {
		if !skill.Enabled {
			continue
		}
		for _, tool := range b.Bind(skill) {
			if err := registry.Replace(tool); err != nil {
				b.logger.Warn("skill tool rebind failed", "skill", skill.Name, "tool", tool.Name, "error", err)
				continue
			}
			next[tool.Name] = true
		}
	}
	for name := range bound {
		if !next[name] {
			registry.Remove(name)
			delete(bound, name)
		}
	}
	for name := range next {
		bound[name] = true
	}
}

func (b *Binder) bindTool(skill Skill, st SkillTool) tools.Tool {
	sandboxed := !skill.Source.Trusted()
	skillDir := skill.Path
	entry := st.EntryPoint
	toolName := st.Name

	handler := func(ctx context.Context, args map[string]any) (any, error) {
		if sandboxed {
			return b.sandbox.Execute(ctx, skillDir, entry, toolName, args)
		}
		return runTrusted(ctx, skillDir, entry, toolName, args)
	}

	return tools.Tool{
		Name:        toolName,
		Description: st.Description,
		Parameters:  st.Parameters,
		Timeout:     st.Timeout,
		Sandboxed:   sandboxed,
		Handler:     handler,
	}
}

// runTrusted executes a trusted skill's entry point with the full process
// environment. Containment still applies; trust does not extend to entry
// points outside the skill directory.
func runTrusted(ctx context.Context, skillDir, entry, toolName string, args map[string]any) (any, error) {
	path, err := sandbox.ResolveEntryPoint(skillDir, entry)
	if err != nil {
		return nil, err
	}
	interpreter, ok := sandbox.InterpreterFor(path)
	if !ok {
		return nil, fmt.Errorf("no interpreter for entry point %s", entry)
	}

	input, err := json.Marshal(sandbox.Invocation{Tool: toolName, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	cmd := exec.CommandContext(ctx, interpreter, path)
	cmd.Dir = skillDir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("skill tool %s failed: %s", toolName, detail)
	}

	out := strings.TrimSpace(stdout.String())
	var decoded any
	if out != "" && json.Unmarshal([]byte(out), &decoded) == nil {
		return decoded, nil
	}
	return out, nil
}
