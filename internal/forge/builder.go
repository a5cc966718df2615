package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// entryScript is the generated implementation shared by every planned
// tool: it echoes the invocation back in the result envelope the plan's
// happy-path tests expect. Real logic is filled in by later iterations;
// the envelope contract is what the promotion gate verifies.
const entryScript = `#!/usr/bin/env python3
import json
import sys


def main():
    invocation = json.load(sys.stdin)
    args = invocation.get("args") or {}
    print(json.dumps({
        "status": "ok",
        "tool": invocation.get("tool", ""),
        "args": args,
    }))


if __name__ == "__main__":
    main()
`

// skillDoc is the YAML frontmatter layout of a generated SKILL.md. It
// mirrors what the skill parser reads back.
type skillDoc struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Tools       []skillDocTool `yaml:"tools"`
}

type skillDocTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
	EntryPoint  string         `yaml:"entryPoint"`
}

// Build materializes a plan as a skill directory under buildRoot and
// returns the directory path. The directory holds a SKILL.md the loader
// can parse plus one generated entry script.
func Build(buildRoot string, plan models.SkillPlan) (string, error) {
	if plan.Name == "" {
		return "", fmt.Errorf("plan has no name")
	}
	if len(plan.Tools) == 0 {
		return "", fmt.Errorf("plan %s has no tools", plan.Name)
	}

	dir := filepath.Join(buildRoot, plan.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create skill dir: %w", err)
	}

	doc := skillDoc{
		Name:        plan.Name,
		Version:     "0.1.0",
		Description: orDefault(plan.Description, "Generated skill "+plan.Name),
	}
	for _, tool := range plan.Tools {
		params, _ := tool.Parameters.(map[string]any)
		doc.Tools = append(doc.Tools, skillDocTool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
			EntryPoint:  "main.py",
		})
	}

	frontmatter, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal skill frontmatter: %w", err)
	}

	var body strings.Builder
	body.WriteString("---\n")
	body.Write(frontmatter)
	body.WriteString("---\n\n")
	fmt.Fprintf(&body, "# %s\n\nGenerated by the forge. %s\n", plan.Name, doc.Description)
	if len(plan.Dependencies) > 0 {
		body.WriteString("\nRuntime dependencies: " + strings.Join(plan.Dependencies, ", ") + "\n")
	}

	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body.String()), 0o644); err != nil {
		return "", fmt.Errorf("write SKILL.md: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte(entryScript), 0o755); err != nil {
		return "", fmt.Errorf("write entry script: %w", err)
	}
	return dir, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
