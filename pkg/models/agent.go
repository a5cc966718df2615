package models

import "strings"

// AgentConfig describes one configured agent.
//
// Model and each entry of Fallbacks are references in the form
// "provider/model-name". Tools is an allow-list of tool names the agent may
// call; an empty list allows all registered tools.
type AgentConfig struct {
	ID            string   `json:"id" yaml:"id"`
	Identity      string   `json:"identity,omitempty" yaml:"identity"`
	Model         string   `json:"model" yaml:"model"`
	Fallbacks     []string `json:"fallbacks,omitempty" yaml:"fallbacks"`
	Tools         []string `json:"tools,omitempty" yaml:"tools"`
	ContextWindow int      `json:"context_window,omitempty" yaml:"contextWindow"`
	MaxTokens     int      `json:"max_tokens,omitempty" yaml:"maxTokens"`
	Temperature   float64  `json:"temperature,omitempty" yaml:"temperature"`
	Subagent      bool     `json:"subagent,omitempty" yaml:"subagent"`
}

// ModelRefs returns the agent's model references in fallback order: the
// primary model first, then each fallback.
func (a AgentConfig) ModelRefs() []string {
	refs := make([]string, 0, 1+len(a.Fallbacks))
	if a.Model != "" {
		refs = append(refs, a.Model)
	}
	return append(refs, a.Fallbacks...)
}

// AllowsTool reports whether the agent's allow-list permits the named tool.
// An empty allow-list permits everything.
func (a AgentConfig) AllowsTool(name string) bool {
	if len(a.Tools) == 0 {
		return true
	}
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// SplitModelRef splits a "provider/model-name" reference. Model names may
// themselves contain slashes ("openrouter/meta/llama-3"), so only the first
// separator counts. A reference with no separator is treated as a bare
// provider name.
func SplitModelRef(ref string) (provider, model string) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
