package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultChainTimeout bounds how long a single provider may take to start
// responding before the chain moves on.
const DefaultChainTimeout = 120 * time.Second

// Attempt records one provider try within a chain execution.
type Attempt struct {
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is a successful chain execution: the canonical chunk stream from
// the provider that answered, plus the full attempt history.
type Result struct {
	Chunks   <-chan models.StreamChunk
	Provider string
	Model    string
	Attempts []Attempt
}

// ChainError reports that no provider in the chain produced a response.
// It carries every attempt made before the chain gave up.
type ChainError struct {
	Attempts []Attempt
	Cause    error
}

func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("all providers failed after %d attempts: %v", len(e.Attempts), e.Cause)
	}
	return fmt.Sprintf("all providers failed after %d attempts", len(e.Attempts))
}

func (e *ChainError) Unwrap() error { return e.Cause }

// FallbackFunc observes one provider-to-provider switch.
type FallbackFunc func(from, to, reason string)

// entry binds a provider to the model it should serve within this chain.
type entry struct {
	provider Provider
	model    string
}

// Chain tries an ordered list of providers until one starts streaming.
// A chain is immutable once built; configuration reloads build a new chain
// rather than mutating a live one.
type Chain struct {
	name       string
	entries    []entry
	timeout    time.Duration
	onFallback FallbackFunc
	logger     *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTimeout sets the per-provider start timeout.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithFallbackHook registers the switch observer.
func WithFallbackHook(fn FallbackFunc) ChainOption {
	return func(c *Chain) { c.onFallback = fn }
}

// WithChainLogger sets the chain's logger.
func WithChainLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger.With("component", "provider_chain") }
}

// NewChain builds a chain over (provider, model) pairs. Entries are ordered
// by provider priority (stable, so equal priorities keep the given order).
func NewChain(name string, entries []ChainEntry, opts ...ChainOption) *Chain {
	c := &Chain{
		name:    name,
		timeout: DefaultChainTimeout,
		logger:  slog.Default().With("component", "provider_chain"),
	}
	for _, e := range entries {
		c.entries = append(c.entries, entry{provider: e.Provider, model: e.Model})
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].provider.Priority() < c.entries[j].provider.Priority()
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainEntry names one provider/model pair for chain construction.
type ChainEntry struct {
	Provider Provider
	Model    string
}

// Name returns the chain's name.
func (c *Chain) Name() string { return c.name }

// Len returns the number of providers in the chain.
func (c *Chain) Len() int { return len(c.entries) }

type chatResult struct {
	ch  <-chan models.StreamChunk
	err error
}

// Execute walks the chain top-down. Unavailable providers are skipped; a
// 401/403 stops the whole chain; any other failure (including a start
// timeout, treated as transport) advances to the next provider. On success
// the result carries the stream and every attempt made.
func (c *Chain) Execute(ctx context.Context, messages []models.Message, opts ChatOptions) (*Result, error) {
	var attempts []Attempt
	var lastErr error

	for i, e := range c.entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		name := e.provider.Name()

		if !e.provider.IsAvailable(ctx) {
			attempts = append(attempts, Attempt{Provider: name, Model: e.model, Reason: "provider unavailable"})
			c.logger.Debug("provider unavailable, skipping", "chain", c.name, "provider", name)
			c.advance(i, "provider unavailable")
			continue
		}

		callOpts := opts
		if e.model != "" {
			callOpts.Model = e.model
		}

		start := time.Now()
		ch, err := c.tryProvider(ctx, e.provider, messages, callOpts)
		elapsed := time.Since(start).Milliseconds()

		if err == nil {
			attempts = append(attempts, Attempt{Provider: name, Model: callOpts.Model, Success: true, DurationMS: elapsed})
			return &Result{Chunks: ch, Provider: name, Model: callOpts.Model, Attempts: attempts}, nil
		}

		lastErr = err
		reason, fatal := classify(err)
		attempts = append(attempts, Attempt{Provider: name, Model: callOpts.Model, Reason: reason, DurationMS: elapsed})

		if fatal {
			c.logger.Warn("provider auth failure, stopping chain",
				"chain", c.name, "provider", name, "error", err)
			return nil, &ChainError{Attempts: attempts, Cause: err}
		}

		c.logger.Warn("provider failed, trying next",
			"chain", c.name, "provider", name, "reason", reason, "error", err)
		c.advance(i, reason)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available in chain %q", c.name)
	}
	return nil, &ChainError{Attempts: attempts, Cause: lastErr}
}

// tryProvider races the provider's Chat call against the per-chain timeout.
// A timeout is surfaced as a transport-style failure (status 0). On success
// the stream is handed back wrapped so its private context is released when
// the stream drains.
func (c *Chain) tryProvider(ctx context.Context, p Provider, messages []models.Message, opts ChatOptions) (<-chan models.StreamChunk, error) {
	chatCtx, cancel := context.WithCancel(ctx)

	resCh := make(chan chatResult, 1)
	go func() {
		ch, err := p.Chat(chatCtx, messages, opts)
		resCh <- chatResult{ch: ch, err: err}
	}()

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-resCh:
		if res.err != nil {
			cancel()
			return nil, res.err
		}
		out := make(chan models.StreamChunk)
		go func() {
			defer cancel()
			defer close(out)
			for chunk := range res.ch {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	case <-timeout:
		cancel()
		return nil, &Error{Provider: p.Name(), Status: 0, Message: fmt.Sprintf("no response within %s", c.timeout)}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// advance fires the fallback hook for the switch away from entry i, when a
// next entry exists.
func (c *Chain) advance(i int, reason string) {
	if c.onFallback == nil || i+1 >= len(c.entries) {
		return
	}
	c.onFallback(c.entries[i].provider.Name(), c.entries[i+1].provider.Name(), reason)
}
