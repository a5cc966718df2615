package forge

import (
	"fmt"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// categoryTemplate is the build recipe for one gap category: the tools a
// skill of that kind should expose and the runtime packages it may need.
type categoryTemplate struct {
	tools []templateTool
	deps  []string
}

type templateTool struct {
	suffix      string
	description string
	params      map[string]any
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var categoryTemplates = map[models.GapCategory]categoryTemplate{
	models.GapFile: {
		tools: []templateTool{
			{"process", "Read and process the target file", objectSchema(map[string]any{
				"path": map[string]any{"type": "string"},
			}, "path")},
		},
		deps: []string{"pathlib"},
	},
	models.GapStorage: {
		tools: []templateTool{
			{"put", "Store a value under a key", objectSchema(map[string]any{
				"key":   map[string]any{"type": "string"},
				"value": map[string]any{},
			}, "key")},
			{"get", "Fetch a stored value by key", objectSchema(map[string]any{
				"key": map[string]any{"type": "string"},
			}, "key")},
		},
		deps: []string{"sqlite3"},
	},
	models.GapNetwork: {
		tools: []templateTool{
			{"fetch", "Fetch a resource over HTTP", objectSchema(map[string]any{
				"url": map[string]any{"type": "string"},
			}, "url")},
		},
		deps: []string{"urllib"},
	},
	models.GapAutomation: {
		tools: []templateTool{
			{"run", "Run the automated step once", objectSchema(map[string]any{
				"target": map[string]any{"type": "string"},
			})},
		},
	},
	models.GapSystem: {
		tools: []templateTool{
			{"exec", "Run the system operation", objectSchema(map[string]any{
				"input": map[string]any{"type": "string"},
			})},
		},
		deps: []string{"subprocess"},
	},
	models.GapData: {
		tools: []templateTool{
			{"convert", "Convert data between formats", objectSchema(map[string]any{
				"input":  map[string]any{"type": "string"},
				"format": map[string]any{"type": "string"},
			}, "input")},
		},
		deps: []string{"json"},
	},
	models.GapOther: {
		tools: []templateTool{
			{"run", "Perform the requested operation", objectSchema(map[string]any{
				"input": map[string]any{"type": "string"},
			})},
		},
	},
}

// Plan realizes a gap into a build recipe: name from the gap, tool set
// and dependencies from the category template, and at least one
// happy-path test case per tool seeded from the cluster examples.
func Plan(gap models.CapabilityGap) models.SkillPlan {
	tmpl, ok := categoryTemplates[gap.Category]
	if !ok {
		tmpl = categoryTemplates[models.GapOther]
	}

	plan := models.SkillPlan{
		Name:                gap.SuggestedName,
		Description:         gap.Description,
		Dependencies:        tmpl.deps,
		EstimatedComplexity: complexityFor(gap),
	}

	for _, tt := range tmpl.tools {
		toolName := gap.SuggestedName + "_" + tt.suffix
		plan.Tools = append(plan.Tools, models.PlannedTool{
			Name:        toolName,
			Description: tt.description,
			Parameters:  tt.params,
		})
		plan.TestCases = append(plan.TestCases, models.TestCase{
			Name:   fmt.Sprintf("%s happy path", toolName),
			Tool:   toolName,
			Args:   seedArgs(tt, gap),
			Expect: map[string]any{"status": "ok"},
		})
	}
	return plan
}

// seedArgs fills the template's required parameters with values taken
// from the gap's examples where possible.
func seedArgs(tt templateTool, gap models.CapabilityGap) map[string]any {
	args := make(map[string]any)
	props, _ := tt.params["properties"].(map[string]any)
	example := ""
	if len(gap.Examples) > 0 {
		example = gap.Examples[0]
	}
	for name := range props {
		switch name {
		case "url":
			args[name] = "https://example.com/"
		case "path":
			args[name] = "example.txt"
		default:
			if example != "" {
				args[name] = firstWords(example, 4)
			} else {
				args[name] = "example"
			}
		}
	}
	return args
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func complexityFor(gap models.CapabilityGap) string {
	switch {
	case gap.Frequency >= 10:
		return "high"
	case gap.Frequency >= 3:
		return "medium"
	default:
		return "low"
	}
}
