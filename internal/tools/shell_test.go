package tools

import (
	"context"
	"strings"
	"testing"
)

func TestShellExecCapturesOutput(t *testing.T) {
	out, err := runShell(context.Background(), map[string]any{"command": "echo hello; echo oops >&2"})
	if err != nil {
		t.Fatalf("runShell: %v", err)
	}
	res := out.(map[string]any)
	if got := res["stdout"].(string); strings.TrimSpace(got) != "hello" {
		t.Errorf("stdout = %q", got)
	}
	if got := res["stderr"].(string); strings.TrimSpace(got) != "oops" {
		t.Errorf("stderr = %q", got)
	}
	if res["exit_code"] != 0 {
		t.Errorf("exit_code = %v", res["exit_code"])
	}
}

func TestShellExecNonZeroExit(t *testing.T) {
	out, err := runShell(context.Background(), map[string]any{"command": "exit 3"})
	if err == nil {
		t.Fatal("runShell succeeded for exit 3")
	}
	if !strings.Contains(err.Error(), "code 3") {
		t.Errorf("error = %v", err)
	}
	if out.(map[string]any)["exit_code"] != 3 {
		t.Errorf("exit_code = %v", out.(map[string]any)["exit_code"])
	}
}

func TestShellExecTimeoutKeepsPartialOutput(t *testing.T) {
	out, err := runShell(context.Background(), map[string]any{
		"command":         "echo started; sleep 5; echo finished",
		"timeout_seconds": 0.2,
	})
	if err == nil {
		t.Fatal("runShell succeeded, want timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout text", err)
	}
	res := out.(map[string]any)
	if got := res["stdout"].(string); !strings.Contains(got, "started") {
		t.Errorf("partial stdout = %q, want the pre-timeout line", got)
	}
	if got := res["stdout"].(string); strings.Contains(got, "finished") {
		t.Errorf("stdout = %q contains post-timeout output", got)
	}
}
