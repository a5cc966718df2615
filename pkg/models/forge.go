package models

import "time"

// GapCategory buckets a capability gap by the kind of work it implies.
type GapCategory string

const (
	GapFile       GapCategory = "file"
	GapStorage    GapCategory = "storage"
	GapNetwork    GapCategory = "network"
	GapAutomation GapCategory = "automation"
	GapSystem     GapCategory = "system"
	GapData       GapCategory = "data"
	GapOther      GapCategory = "other"
)

// CapabilityGap is a clustered pattern of tool failures or unmet user
// requests that justifies building a new skill.
type CapabilityGap struct {
	Category      GapCategory `json:"category"`
	Description   string      `json:"description"`
	Examples      []string    `json:"examples"`
	Frequency     int         `json:"frequency"`
	Confidence    float64     `json:"confidence"`
	SuggestedName string      `json:"suggested_name"`
}

// ToolFailure is one failed tool execution drawn from the event log.
type ToolFailure struct {
	Tool      string    `json:"tool"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UserRequest is one user ask considered by the gap detector. Unhandled
// requests and requests carrying an explicit missing-capability hint weigh
// more than handled ones.
type UserRequest struct {
	Content           string `json:"content"`
	Handled           bool   `json:"handled"`
	MissingCapability string `json:"missing_capability,omitempty"`
}

// SkillPlan is the build recipe the planner derives from a gap.
type SkillPlan struct {
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	Tools               []PlannedTool `json:"tools"`
	Dependencies        []string      `json:"dependencies,omitempty"`
	TestCases           []TestCase    `json:"test_cases"`
	EstimatedComplexity string        `json:"estimated_complexity"`
}

// PlannedTool sketches one tool the planned skill should expose.
type PlannedTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// TestCase invokes one tool with fixed arguments and declares the shape the
// result must satisfy. Expect is compared structurally: every leaf path
// present in Expect must exist in the actual result; extra actual fields
// are allowed.
type TestCase struct {
	Name   string `json:"name"`
	Tool   string `json:"tool"`
	Args   any    `json:"args,omitempty"`
	Expect any    `json:"expect,omitempty"`
}
