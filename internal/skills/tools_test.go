package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/sandbox"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
)

func TestBindMarksForgedSandboxed(t *testing.T) {
	skill := Skill{
		Name:   "csv-kit",
		Source: SourceForged,
		Path:   t.TempDir(),
		Tools: []SkillTool{
			{Name: "csv_to_json", Description: "convert", EntryPoint: "run.sh"},
			{Name: "doc_only", Description: "no entry point"},
		},
	}
	bound := NewBinder(sandbox.NewRunner(), nil).Bind(skill)
	if len(bound) != 1 {
		t.Fatalf("bound %d tools, want 1 (doc-only skipped)", len(bound))
	}
	if !bound[0].Sandboxed {
		t.Error("forged skill tool not sandboxed")
	}

	skill.Source = SourceCurated
	bound = NewBinder(sandbox.NewRunner(), nil).Bind(skill)
	if bound[0].Sandboxed {
		t.Error("curated skill tool sandboxed")
	}
}

func TestTrustedToolRunsEntryPoint(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\ncat > /dev/null\necho '{\"rows\": 2}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	skill := Skill{
		Name:    "csv-kit",
		Source:  SourceCurated,
		Enabled: true,
		Path:    dir,
		Tools:   []SkillTool{{Name: "csv_head", Description: "head", EntryPoint: "run.sh"}},
	}

	bound := NewBinder(sandbox.NewRunner(), nil).Bind(skill)
	out, err := bound[0].Handler(context.Background(), map[string]any{"path": "a.csv"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res, ok := out.(map[string]any); !ok || res["rows"] != float64(2) {
		t.Errorf("result = %#v", out)
	}
}

func TestSyncTracksEnableDisable(t *testing.T) {
	reg := tools.NewRegistry()
	if err := reg.Register(tools.Tool{
		Name:    "clock",
		Handler: func(context.Context, map[string]any) (any, error) { return nil, nil },
	}); err != nil {
		t.Fatal(err)
	}

	skill := Skill{
		Name:    "csv-kit",
		Source:  SourceForged,
		Enabled: true,
		Path:    t.TempDir(),
		Tools:   []SkillTool{{Name: "csv_to_json", Description: "convert", EntryPoint: "run.sh"}},
	}

	binder := NewBinder(sandbox.NewRunner(), nil)
	bound := map[string]bool{}

	binder.Sync(reg, bound, []Skill{skill})
	if _, ok := reg.Get("csv_to_json"); !ok {
		t.Fatal("enabled skill tool not registered")
	}

	skill.Enabled = false
	binder.Sync(reg, bound, []Skill{skill})
	if _, ok := reg.Get("csv_to_json"); ok {
		t.Error("disabled skill tool still registered")
	}
	if _, ok := reg.Get("clock"); !ok {
		t.Error("builtin removed by skill sync")
	}
}
