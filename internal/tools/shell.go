package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultShellTimeout bounds shell_exec when the caller gives no limit.
const defaultShellTimeout = 2 * time.Minute

func shellTool() Tool {
	return Tool{
		Name:        "shell_exec",
		Description: "Runs a shell command and returns stdout, stderr, and the exit code.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Command line to run via sh -c"},
				"workdir": {"type": "string", "description": "Working directory"},
				"timeout_seconds": {"type": "number", "description": "Wall-clock limit for the command"}
			},
			"required": ["command"]
		}`),
		Handler: runShell,
	}
}

// runShell executes the command and always captures whatever partial
// output was produced. On timeout the process group is killed and the
// partial stdout/stderr up to that point is returned with the error.
func runShell(ctx context.Context, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("command is empty")
	}

	timeout := defaultShellTimeout
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if workdir, _ := args["workdir"].(string); workdir != "" {
		cmd.Dir = workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second // force kill if the process ignores the signal

	err := cmd.Run()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("shell_exec timed out after %s (partial output: %d bytes stdout, %d bytes stderr)",
			timeout, stdout.Len(), stderr.Len())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("command exited with code %d", exitErr.ExitCode())
		}
		return result, err
	}
	return result, nil
}
