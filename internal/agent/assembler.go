package agent

import (
	"context"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultReserveFloor is the token headroom kept free for the model's
// reply when sizing the prompt.
const DefaultReserveFloor = 1024

// FactsSource supplies the stable facts known about a sender, distilled
// from earlier sessions.
type FactsSource interface {
	Facts(ctx context.Context, channel models.ChannelType, sender string) []string
}

// SchemaSource lists the tool schemas an allow-list permits.
type SchemaSource interface {
	Schemas(allow []string) []tools.Schema
}

// Assembler builds the per-turn prompt: system identity, sender facts,
// session history, and the filtered tool list, compacting history when
// the estimate overruns the agent's context window.
type Assembler struct {
	globalPrompt string
	facts        FactsSource
	schemas      SchemaSource
	reserveFloor int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithGlobalPrompt sets instructions shared by every agent.
func WithGlobalPrompt(prompt string) AssemblerOption {
	return func(a *Assembler) { a.globalPrompt = prompt }
}

// WithFacts sets the facts source.
func WithFacts(src FactsSource) AssemblerOption {
	return func(a *Assembler) { a.facts = src }
}

// WithReserveFloor overrides the reply headroom.
func WithReserveFloor(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.reserveFloor = n
		}
	}
}

// NewAssembler creates an assembler over the tool schema source.
func NewAssembler(schemas SchemaSource, opts ...AssemblerOption) *Assembler {
	a := &Assembler{schemas: schemas, reserveFloor: DefaultReserveFloor}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prompt is an assembled model request.
type Prompt struct {
	Messages  []models.Message
	Tools     []tools.Schema
	Compacted bool
}

// Assemble builds the prompt for one turn. History is taken from the
// session as-is; when the estimated size plus the reserve floor exceeds
// the agent's context window, older history is compacted first.
func (a *Assembler) Assemble(ctx context.Context, agent models.AgentConfig, session *models.Session) Prompt {
	system := a.systemPrompt(agent)

	var facts []string
	if a.facts != nil {
		facts = a.facts.Facts(ctx, session.Channel, session.Sender)
	}

	history := session.Messages
	prompt := a.build(system, facts, history)

	compacted := false
	if agent.ContextWindow > 0 && EstimateTokens(prompt.Messages)+a.reserveFloor > agent.ContextWindow {
		history = Compact(history)
		prompt = a.build(system, facts, history)
		compacted = true
	}

	prompt.Tools = a.schemas.Schemas(agent.Tools)
	prompt.Compacted = compacted
	return prompt
}

func (a *Assembler) build(system string, facts []string, history []models.Message) Prompt {
	msgs := make([]models.Message, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: system})
	}
	if len(facts) > 0 {
		var b strings.Builder
		b.WriteString("Known facts about this user:")
		for _, f := range facts {
			b.WriteString("\n- ")
			b.WriteString(f)
		}
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: b.String()})
	}
	msgs = append(msgs, history...)
	return Prompt{Messages: msgs}
}

func (a *Assembler) systemPrompt(agent models.AgentConfig) string {
	parts := make([]string, 0, 2)
	if agent.Identity != "" {
		parts = append(parts, agent.Identity)
	}
	if a.globalPrompt != "" {
		parts = append(parts, a.globalPrompt)
	}
	return strings.Join(parts, "\n\n")
}

// EstimateTokens sizes a message list with the conservative heuristic of
// one token per four characters, rounded up per message.
func EstimateTokens(msgs []models.Message) int {
	total := 0
	for _, m := range msgs {
		total += (len(m.Content) + 3) / 4
	}
	return total
}
