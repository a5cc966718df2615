package forge

import (
	"strings"
	"testing"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func TestPlanCoversEveryToolWithATest(t *testing.T) {
	for category := range categoryTemplates {
		gap := models.CapabilityGap{
			Category:      category,
			Description:   "test gap",
			Examples:      []string{"convert my data please"},
			Frequency:     3,
			Confidence:    0.6,
			SuggestedName: "sample-skill",
		}
		plan := Plan(gap)
		if plan.Name != "sample-skill" {
			t.Errorf("%s: Name = %q", category, plan.Name)
		}
		if len(plan.Tools) == 0 {
			t.Errorf("%s: plan has no tools", category)
		}
		tested := make(map[string]bool)
		for _, tc := range plan.TestCases {
			tested[tc.Tool] = true
		}
		for _, tool := range plan.Tools {
			if !tested[tool.Name] {
				t.Errorf("%s: tool %s has no test case", category, tool.Name)
			}
			if !strings.HasPrefix(tool.Name, "sample-skill_") {
				t.Errorf("%s: tool name %q not derived from skill name", category, tool.Name)
			}
		}
	}
}

func TestPlanUnknownCategoryFallsBack(t *testing.T) {
	plan := Plan(models.CapabilityGap{Category: "mystery", SuggestedName: "x"})
	if len(plan.Tools) == 0 || len(plan.TestCases) == 0 {
		t.Error("fallback template produced an empty plan")
	}
}

func TestPlanSeedsRequiredArgs(t *testing.T) {
	plan := Plan(models.CapabilityGap{
		Category:      models.GapNetwork,
		SuggestedName: "fetcher",
	})
	args, ok := plan.TestCases[0].Args.(map[string]any)
	if !ok {
		t.Fatalf("Args = %T", plan.TestCases[0].Args)
	}
	if args["url"] == "" || args["url"] == nil {
		t.Errorf("url arg not seeded: %v", args)
	}
}

func TestPlanComplexityScalesWithFrequency(t *testing.T) {
	low := Plan(models.CapabilityGap{SuggestedName: "a", Frequency: 1, Category: models.GapOther})
	med := Plan(models.CapabilityGap{SuggestedName: "b", Frequency: 5, Category: models.GapOther})
	high := Plan(models.CapabilityGap{SuggestedName: "c", Frequency: 12, Category: models.GapOther})
	if low.EstimatedComplexity != "low" || med.EstimatedComplexity != "medium" || high.EstimatedComplexity != "high" {
		t.Errorf("complexities = %q %q %q", low.EstimatedComplexity, med.EstimatedComplexity, high.EstimatedComplexity)
	}
}
