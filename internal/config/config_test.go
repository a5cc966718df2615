package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func testAgents() []models.AgentConfig {
	return []models.AgentConfig{{ID: "main", Model: "local/llama3"}}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
providers:
  - name: local
    type: ollama
agents:
  - id: main
    model: local/llama3
`

func TestLoadMinimal(t *testing.T) {
	path := writeFile(t, t.TempDir(), "openclaw.yaml", minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultAgent != "main" {
		t.Errorf("DefaultAgent = %q, want sole agent promoted", cfg.DefaultAgent)
	}
	if cfg.Logging.Level != "info" || cfg.Storage.DataDir != "./data" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Storage.EventLog != filepath.Join("./data", "events.db") {
		t.Errorf("EventLog = %q", cfg.Storage.EventLog)
	}
	if cfg.Forge.MinConfidence != 0.5 {
		t.Errorf("Forge.MinConfidence = %v", cfg.Forge.MinConfidence)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("OPENCLAW_TEST_TOKEN", "123:abc")
	content := minimalYAML + `
channels:
  telegram:
    enabled: true
    token: ${OPENCLAW_TEST_TOKEN}
`
	cfg, err := Load(writeFile(t, t.TempDir(), "openclaw.yaml", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Channels.Telegram.Token)
	}
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
logging:
  level: debug
providers:
  - name: local
    type: ollama
`)
	main := writeFile(t, dir, "openclaw.yaml", `
$include: base.yaml
logging:
  format: json
agents:
  - id: main
    model: local/llama3
`)
	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("merged logging = %+v", cfg.Logging)
	}
	if len(cfg.Providers) != 1 {
		t.Errorf("providers = %+v", cfg.Providers)
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	a := filepath.Join(dir, "a.yaml")
	writeFile(t, dir, "b.yaml", "$include: a.yaml\n")
	if _, err := LoadRaw(a); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("err = %v, want include cycle", err)
	}
}

func TestLoadJSON5(t *testing.T) {
	content := `{
  // comments are fine in json5
  providers: [{name: "local", type: "ollama"}],
  agents: [{id: "main", model: "local/llama3"}],
}`
	cfg, err := Load(writeFile(t, t.TempDir(), "openclaw.json5", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].ID != "main" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	content := minimalYAML + "surprise: true\n"
	if _, err := Load(writeFile(t, t.TempDir(), "openclaw.yaml", content)); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name: "maxTokens over contextWindow",
			mutate: func(c *Config) {
				c.Agents[0].MaxTokens = 9000
				c.Agents[0].ContextWindow = 8000
			},
			wantErr: "exceeds contextWindow",
		},
		{
			name: "unknown provider in model ref",
			mutate: func(c *Config) {
				c.Agents[0].Model = "missing/llama3"
			},
			wantErr: "unknown provider",
		},
		{
			name: "unknown provider in fallback",
			mutate: func(c *Config) {
				c.Agents[0].Fallbacks = []string{"missing/gpt"}
			},
			wantErr: "unknown provider",
		},
		{
			name: "duplicate agent",
			mutate: func(c *Config) {
				c.Agents = append(c.Agents, c.Agents[0])
			},
			wantErr: "declared twice",
		},
		{
			name: "binding to unknown agent",
			mutate: func(c *Config) {
				c.Bindings = map[string]string{"telegram": "ghost"}
			},
			wantErr: "unknown agent",
		},
		{
			name: "telegram enabled without token",
			mutate: func(c *Config) {
				c.Channels.Telegram.Enabled = true
			},
			wantErr: "token is required",
		},
		{
			name: "task with cron and every",
			mutate: func(c *Config) {
				c.Tasks = []TaskConfig{{ID: "t", Cron: "* * * * *", Every: 1, Message: "hi"}}
			},
			wantErr: "exactly one of cron or every",
		},
		{
			name: "task without message",
			mutate: func(c *Config) {
				c.Tasks = []TaskConfig{{ID: "t", Cron: "* * * * *"}}
			},
			wantErr: "message is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Providers: []ProviderConfig{{Name: "local", Type: "ollama"}},
				Agents:    testAgents(),
			}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	for _, key := range []string{"providers", "agents", "defaultAgent", "forge"} {
		if !strings.Contains(string(schema), key) {
			t.Errorf("schema missing %q", key)
		}
	}
}
