// Package provider defines the model-provider abstraction and the fallback
// chain that walks an ordered list of providers with status-aware failover.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// ToolSchema is the provider-facing description of one callable tool.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatOptions carries the per-call knobs a provider understands.
type ChatOptions struct {
	// Model overrides the provider's default model for this call.
	Model string

	// MaxTokens caps the generated tokens. Zero means provider default.
	MaxTokens int

	// Temperature sets sampling temperature when non-zero.
	Temperature float64

	// Tools are the schemas exposed to the model for this call.
	Tools []ToolSchema

	// SessionID and Channel identify the originating conversation; they are
	// carried for hook and logging context, not sent upstream.
	SessionID string
	Channel   models.ChannelType
}

// Provider is one LLM endpoint participating in a fallback chain.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider name used in attempts and logs.
	Name() string

	// Priority orders providers within a chain; lower runs first.
	Priority() int

	// IsAvailable reports whether the provider can accept a request right
	// now (configured, reachable). Unavailable providers are skipped, not
	// failed.
	IsAvailable(ctx context.Context) bool

	// Chat starts a streaming completion. The returned channel yields the
	// canonical chunk sequence and is closed when the stream is over.
	Chat(ctx context.Context, messages []models.Message, opts ChatOptions) (<-chan models.StreamChunk, error)
}

// Error is a provider failure carrying the upstream HTTP status.
// Status 0 means the failure happened below HTTP (transport, timeout).
type Error struct {
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// retryableStatuses advance the chain to the next provider.
var retryableStatuses = map[int]bool{
	0:   true,
	400: true,
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// fatalStatus reports whether a status short-circuits the whole chain.
func fatalStatus(status int) bool {
	return status == 401 || status == 403
}

// classify maps a provider error to (reason, fatal). A fatal error stops
// the chain; anything else advances to the next provider.
func classify(err error) (reason string, fatal bool) {
	var perr *Error
	if !errors.As(err, &perr) {
		// Not an HTTP-shaped failure: transport-class, advance.
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout", false
		}
		return "transport", false
	}

	switch {
	case fatalStatus(perr.Status):
		return "auth", true
	case perr.Status == 429:
		return "rate_limit", false
	case perr.Status == 408:
		return "timeout", false
	case perr.Status >= 500:
		return "server_error", false
	case perr.Status == 400:
		return "bad_request", false
	case perr.Status == 0:
		return "transport", false
	default:
		return fmt.Sprintf("status_%d", perr.Status), false
	}
}
