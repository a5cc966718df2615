// Package skills manages the named tool bundles agents can invoke:
// discovery from SKILL.md definitions, an atomically swapped registry
// snapshot, and the bridge that turns skill tools into executable ones.
package skills

import (
	"encoding/json"
	"time"
)

// SourceType says where a skill came from and how much it is trusted.
type SourceType string

const (
	// SourceBundled skills ship with the binary's skill tree.
	SourceBundled SourceType = "bundled"
	// SourceCurated skills were installed by the operator.
	SourceCurated SourceType = "curated"
	// SourceForged skills were generated by the forge; their tools run
	// sandboxed.
	SourceForged SourceType = "forged"
)

// Trusted reports whether tools from this source run in-process
// privileges (full environment, caller timeouts) rather than sandboxed.
func (s SourceType) Trusted() bool {
	return s == SourceBundled || s == SourceCurated
}

// Skill is one named bundle of tools.
type Skill struct {
	// Name is the unique skill identifier (lowercase, hyphens allowed).
	Name string `json:"name" yaml:"name"`

	// Version is an opaque version string from the skill definition.
	Version string `json:"version,omitempty" yaml:"version"`

	// Description explains what the skill does and when to use it.
	Description string `json:"description" yaml:"description"`

	// Tools are the operations the skill exposes, in declaration order.
	Tools []SkillTool `json:"tools" yaml:"tools"`

	// Source is the trust origin; assigned by the loader, not the file.
	Source SourceType `json:"source" yaml:"-"`

	// Enabled skills are selectable by the executor. A quarantined forged
	// skill stays on disk with Enabled false.
	Enabled bool `json:"enabled" yaml:"-"`

	// Path is the skill's directory.
	Path string `json:"path" yaml:"-"`

	// Content is the markdown body of SKILL.md (usage instructions).
	Content string `json:"-" yaml:"-"`
}

// SkillTool declares one tool within a skill.
type SkillTool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Parameters is the JSON-Schema for the tool's arguments.
	Parameters json.RawMessage `json:"parameters,omitempty" yaml:"-"`

	// RawParameters holds the YAML form of the schema before conversion.
	RawParameters map[string]any `json:"-" yaml:"parameters"`

	// EntryPoint is the script that implements the tool, relative to the
	// skill directory. Empty for documentation-only tools.
	EntryPoint string `json:"entry_point,omitempty" yaml:"entryPoint"`

	// Timeout overrides the executor's default for this tool.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}
