// Package sandbox runs forged-skill entry points in an isolated process:
// an allow-listed interpreter, a stripped environment, a hard wall-clock
// cap, and a path-containment check that rejects entry points escaping
// their skill directory.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// MaxDuration is the wall-clock cap for a sandboxed execution, applied
// regardless of what the tool declares.
const MaxDuration = 15 * time.Second

// ErrEscapesSkillDir reports an entry point whose resolved path is not a
// descendant of its skill directory.
var ErrEscapesSkillDir = errors.New("entry point escapes skill directory")

// ErrCommandNotAllowed reports an interpreter outside the allow-list.
var ErrCommandNotAllowed = errors.New("interpreter not on sandbox allow-list")

// defaultInterpreters maps entry-point extensions to the interpreter that
// runs them.
var defaultInterpreters = map[string]string{
	".py": "python3",
	".js": "node",
	".sh": "sh",
}

// defaultEnvAllow lists the only environment variables passed through to
// sandboxed processes.
var defaultEnvAllow = []string{"PATH", "HOME", "LANG", "TZ"}

// Runner executes sandboxed entry points.
type Runner struct {
	interpreters map[string]string
	envAllow     []string
	logger       *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger.With("component", "sandbox") }
}

// WithInterpreter adds or overrides the interpreter for an extension.
func WithInterpreter(ext, command string) Option {
	return func(r *Runner) { r.interpreters[ext] = command }
}

// NewRunner creates a sandbox runner with the default allow-lists.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		interpreters: make(map[string]string, len(defaultInterpreters)),
		envAllow:     defaultEnvAllow,
		logger:       slog.Default().With("component", "sandbox"),
	}
	for ext, cmd := range defaultInterpreters {
		r.interpreters[ext] = cmd
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveEntryPoint resolves entry relative to skillDir and verifies
// containment. Symbolic links are followed before the check, so a link
// that points outside the skill directory is rejected.
func ResolveEntryPoint(skillDir, entry string) (string, error) {
	dir, err := filepath.EvalSymlinks(skillDir)
	if err != nil {
		return "", fmt.Errorf("resolve skill directory: %w", err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve skill directory: %w", err)
	}

	path := entry
	if !filepath.IsAbs(path) {
		path = filepath.Join(skillDir, entry)
	}
	path, err = filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolve entry point: %w", err)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve entry point: %w", err)
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesSkillDir, entry)
	}
	return path, nil
}

// InterpreterFor returns the allow-listed interpreter for an entry-point
// path, by extension.
func InterpreterFor(path string) (string, bool) {
	cmd, ok := defaultInterpreters[filepath.Ext(path)]
	return cmd, ok
}

// Invocation is the JSON document a sandboxed entry point receives on
// stdin.
type Invocation struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Execute runs the entry point for one tool call. The process gets the
// invocation as JSON on stdin and must print its result to stdout; JSON
// output is decoded, anything else is returned as a string. Execution is
// capped at MaxDuration even if the caller's context allows more.
func (r *Runner) Execute(ctx context.Context, skillDir, entry, toolName string, args map[string]any) (any, error) {
	path, err := ResolveEntryPoint(skillDir, entry)
	if err != nil {
		return nil, err
	}

	interpreter, ok := r.interpreters[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotAllowed, filepath.Ext(path))
	}
	if _, err := exec.LookPath(interpreter); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrCommandNotAllowed, interpreter)
	}

	runCtx, cancel := context.WithTimeout(ctx, MaxDuration)
	defer cancel()

	input, err := json.Marshal(Invocation{Tool: toolName, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	cmd := exec.CommandContext(runCtx, interpreter, path)
	cmd.Dir = skillDir
	cmd.Env = r.filteredEnv()
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("sandboxed execution finished",
		"entry", path, "tool", toolName, "duration", time.Since(start), "error", err)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("sandboxed tool %s exceeded %s", toolName, MaxDuration)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("sandboxed tool %s failed: %s", toolName, detail)
	}

	out := strings.TrimSpace(stdout.String())
	var decoded any
	if out != "" && json.Unmarshal([]byte(out), &decoded) == nil {
		return decoded, nil
	}
	return out, nil
}

func (r *Runner) filteredEnv() []string {
	env := make([]string, 0, len(r.envAllow))
	for _, key := range r.envAllow {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}
