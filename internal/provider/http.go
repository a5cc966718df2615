package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/stream"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// maxErrorBody caps how much of an upstream error response is kept.
const maxErrorBody = 4 * 1024

// Config is the shared configuration for the HTTP-backed providers.
type Config struct {
	// Name identifies the provider in chains, attempts, and logs.
	Name string

	// BaseURL is the API root (no trailing slash).
	BaseURL string

	// APIKey authenticates requests; providers that need one report
	// unavailable while it is empty.
	APIKey string

	// Model is the default model when a call does not override it.
	Model string

	// Priority orders the provider within chains; lower runs first.
	Priority int

	// Client overrides the HTTP client. The default client carries no
	// global timeout: streams are long-lived and are bounded by context.
	Client *http.Client

	Logger *slog.Logger
}

// httpBackend carries the plumbing shared by the concrete providers.
type httpBackend struct {
	name     string
	baseURL  string
	apiKey   string
	model    string
	priority int
	client   *http.Client
	decoder  *stream.Decoder
	logger   *slog.Logger
}

func newHTTPBackend(cfg Config, defaultBaseURL string) httpBackend {
	b := httpBackend{
		name:     cfg.Name,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		priority: cfg.Priority,
		client:   cfg.Client,
		logger:   cfg.Logger,
	}
	if b.baseURL == "" {
		b.baseURL = defaultBaseURL
	}
	if b.client == nil {
		b.client = &http.Client{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "provider", "provider", b.name)
	b.decoder = stream.NewDecoder(stream.WithLogger(b.logger))
	return b
}

func (b *httpBackend) Name() string  { return b.name }
func (b *httpBackend) Priority() int { return b.priority }

// doStream POSTs payload and decodes the response body in the given
// dialect. Non-2xx responses become *Error with the upstream status;
// transport failures become *Error with status 0. The response body is
// closed when the decoded stream finishes.
func (b *httpBackend) doStream(ctx context.Context, path string, headers map[string]string, payload any, dialect stream.Dialect) (<-chan models.StreamChunk, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if dialect != stream.DialectOllama {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: b.name, Status: 0, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &Error{
			Provider: b.name,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(detail)),
		}
	}

	chunks := b.decoder.Decode(ctx, resp.Body, dialect)
	out := make(chan models.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		for chunk := range chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
