// Package config loads and validates the openclaw runtime configuration.
// Config files are YAML or JSON5, support $include composition and ${ENV}
// expansion, and map one-to-one onto the gateway's wiring.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Config is the root configuration document.
type Config struct {
	Logging   LoggingConfig        `yaml:"logging" json:"logging"`
	Storage   StorageConfig        `yaml:"storage" json:"storage"`
	Providers []ProviderConfig     `yaml:"providers" json:"providers"`
	Agents    []models.AgentConfig `yaml:"agents" json:"agents"`

	// Bindings maps a channel name ("telegram", "console", "cron") to the
	// agent handling its messages. Unbound channels fall back to DefaultAgent.
	Bindings     map[string]string `yaml:"bindings" json:"bindings,omitempty"`
	DefaultAgent string            `yaml:"defaultAgent" json:"default_agent"`

	Channels ChannelsConfig `yaml:"channels" json:"channels"`
	Tasks    []TaskConfig   `yaml:"tasks" json:"tasks,omitempty"`
	Forge    ForgeConfig    `yaml:"forge" json:"forge"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// StorageConfig names the on-disk locations. All paths default to
// subpaths of DataDir when empty.
type StorageConfig struct {
	// DataDir is the runtime state root. Default "./data".
	DataDir string `yaml:"dataDir" json:"data_dir"`

	// EventLog is the sqlite event-log file.
	EventLog string `yaml:"eventLog" json:"event_log,omitempty"`

	// Facts is the per-sender facts JSON file.
	Facts string `yaml:"facts" json:"facts,omitempty"`

	// Skills names the skill search roots by trust level.
	Skills SkillDirsConfig `yaml:"skills" json:"skills"`
}

// SkillDirsConfig names the skill search roots.
type SkillDirsConfig struct {
	Bundled    string `yaml:"bundled" json:"bundled,omitempty"`
	Curated    string `yaml:"curated" json:"curated,omitempty"`
	Forged     string `yaml:"forged" json:"forged,omitempty"`
	Quarantine string `yaml:"quarantine" json:"quarantine,omitempty"`
}

// ProviderConfig declares one LLM endpoint.
type ProviderConfig struct {
	// Name identifies the provider in model references ("name/model").
	Name string `yaml:"name" json:"name"`

	// Type selects the wire dialect: anthropic, openai, or ollama.
	Type string `yaml:"type" json:"type"`

	BaseURL  string `yaml:"baseUrl" json:"base_url,omitempty"`
	APIKey   string `yaml:"apiKey" json:"api_key,omitempty"`
	Model    string `yaml:"model" json:"model,omitempty"`
	Priority int    `yaml:"priority" json:"priority,omitempty"`
}

// ChannelsConfig declares the messaging surfaces.
type ChannelsConfig struct {
	Console  ConsoleChannelConfig  `yaml:"console" json:"console"`
	Telegram TelegramChannelConfig `yaml:"telegram" json:"telegram"`
}

// ConsoleChannelConfig enables the local stdin/stdout surface.
type ConsoleChannelConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TelegramChannelConfig configures the telegram adapter.
type TelegramChannelConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token" json:"token,omitempty"`
}

// TaskConfig declares one scheduled task. Exactly one of Cron or Every
// must be set. When the task fires, Message is routed on the cron channel
// like any inbound message.
type TaskConfig struct {
	ID       string        `yaml:"id" json:"id"`
	Name     string        `yaml:"name" json:"name,omitempty"`
	Cron     string        `yaml:"cron" json:"cron,omitempty"`
	Timezone string        `yaml:"timezone" json:"timezone,omitempty"`
	Every    time.Duration `yaml:"every" json:"every,omitempty"`
	Message  string        `yaml:"message" json:"message"`
}

// ForgeConfig controls the background gap-detection sweep.
type ForgeConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Cron is the sweep schedule. Default: daily at 03:00.
	Cron string `yaml:"cron" json:"cron,omitempty"`

	// MinConfidence gates automatic skill forging. Default 0.5.
	MinConfidence float64 `yaml:"minConfidence" json:"min_confidence,omitempty"`

	// Lookback bounds how far back failures are considered. Default 168h.
	Lookback time.Duration `yaml:"lookback" json:"lookback,omitempty"`
}

// MetricsConfig exposes the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr,omitempty"`
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.EventLog == "" {
		c.Storage.EventLog = filepath.Join(c.Storage.DataDir, "events.db")
	}
	if c.Storage.Facts == "" {
		c.Storage.Facts = filepath.Join(c.Storage.DataDir, "facts.json")
	}
	if c.Storage.Skills.Forged == "" {
		c.Storage.Skills.Forged = filepath.Join(c.Storage.DataDir, "skills", "forged")
	}
	if c.Storage.Skills.Quarantine == "" {
		c.Storage.Skills.Quarantine = filepath.Join(c.Storage.DataDir, "skills", "quarantine")
	}
	if c.Forge.Cron == "" {
		c.Forge.Cron = "0 3 * * *"
	}
	if c.Forge.MinConfidence == 0 {
		c.Forge.MinConfidence = 0.5
	}
	if c.Forge.Lookback == 0 {
		c.Forge.Lookback = 7 * 24 * time.Hour
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.DefaultAgent == "" && len(c.Agents) == 1 {
		c.DefaultAgent = c.Agents[0].ID
	}
}

var providerTypes = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"ollama":    true,
}

// Validate checks cross-field consistency. Call after ApplyDefaults.
func (c *Config) Validate() error {
	providers := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if providers[p.Name] {
			return fmt.Errorf("provider %q declared twice", p.Name)
		}
		providers[p.Name] = true
		if !providerTypes[p.Type] {
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	agents := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if agents[a.ID] {
			return fmt.Errorf("agent %q declared twice", a.ID)
		}
		agents[a.ID] = true
		if a.Model == "" {
			return fmt.Errorf("agent %q: model is required", a.ID)
		}
		for _, ref := range a.ModelRefs() {
			name, _ := models.SplitModelRef(ref)
			if !providers[name] {
				return fmt.Errorf("agent %q references unknown provider %q", a.ID, name)
			}
		}
		if a.MaxTokens > 0 && a.ContextWindow > 0 && a.MaxTokens > a.ContextWindow {
			return fmt.Errorf("agent %q: maxTokens %d exceeds contextWindow %d", a.ID, a.MaxTokens, a.ContextWindow)
		}
	}

	if c.DefaultAgent != "" && !agents[c.DefaultAgent] {
		return fmt.Errorf("defaultAgent %q is not a declared agent", c.DefaultAgent)
	}
	for channel, agentID := range c.Bindings {
		if !agents[agentID] {
			return fmt.Errorf("binding %q references unknown agent %q", channel, agentID)
		}
	}
	if c.DefaultAgent == "" && len(c.Bindings) == 0 {
		return fmt.Errorf("defaultAgent or bindings required to route messages")
	}

	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		return fmt.Errorf("channels.telegram: token is required when enabled")
	}

	tasks := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.ID == "" {
			return fmt.Errorf("tasks[%d]: id is required", i)
		}
		if tasks[t.ID] {
			return fmt.Errorf("task %q declared twice", t.ID)
		}
		tasks[t.ID] = true
		if (t.Cron == "") == (t.Every == 0) {
			return fmt.Errorf("task %q: exactly one of cron or every is required", t.ID)
		}
		if t.Message == "" {
			return fmt.Errorf("task %q: message is required", t.ID)
		}
	}
	return nil
}

// AgentByID returns the named agent config.
func (c *Config) AgentByID(id string) (models.AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return models.AgentConfig{}, false
}
