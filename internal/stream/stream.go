// Package stream normalizes provider wire formats into the canonical chunk
// sequence. Three dialects are supported: OpenAI-shaped SSE, Anthropic-shaped
// SSE, and Ollama-shaped NDJSON. Downstream code never sees dialect details.
package stream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Dialect selects the wire format a byte stream is decoded as.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
	DialectOllama    Dialect = "ollama"
)

const (
	// initialBufSize is the starting line buffer for stream scanning.
	initialBufSize = 64 * 1024
	// maxBufSize caps a single wire line; payloads beyond this fail the stream.
	maxBufSize = 1024 * 1024
)

// doneMarker is the sentinel SSE payload that terminates a stream.
const doneMarker = "[DONE]"

// Decoder converts provider byte streams into canonical chunks.
type Decoder struct {
	logger *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for skipped-event diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger.With("component", "stream")
	}
}

// NewDecoder creates a decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{logger: slog.Default().With("component", "stream")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// emitFn delivers one chunk to the consumer. It returns false when the
// consumer is gone (context canceled) and decoding should stop.
type emitFn func(models.StreamChunk) bool

// dialectMachine is the per-dialect state behind the shared framing loop.
type dialectMachine interface {
	// event handles one framed wire event. ok=false aborts decoding.
	event(name, data string, emit emitFn) (ok bool)
	// finish runs once at end of input. emitStop is true when the end was
	// an explicit terminator ([DONE]) rather than a bare EOF.
	finish(emit emitFn, emitStop bool) (ok bool)
}

// Decode reads r until EOF, terminator, or error and yields the canonical
// chunk sequence. The returned channel is closed when the stream is over.
// If the byte source itself fails, the last chunk before close carries the
// error in Err.
//
// Lines are buffered before any byte is interpreted, so an input split at
// arbitrary byte boundaries (including inside a multi-byte UTF-8 sequence)
// decodes to the same sequence as the unsplit input.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, dialect Dialect) <-chan models.StreamChunk {
	out := make(chan models.StreamChunk)

	go func() {
		defer close(out)

		emit := func(c models.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var err error
		if dialect == DialectOllama {
			err = d.decodeNDJSON(r, emit)
		} else {
			err = d.decodeSSE(r, dialect, emit)
		}
		if err != nil && ctx.Err() == nil {
			emit(models.StreamChunk{Err: err})
		}
	}()

	return out
}

// decodeSSE frames server-sent events: lines are accumulated until a blank
// line, repeated data lines within one event are joined with a single
// newline, and the framed event is handed to the dialect machine.
func (d *Decoder) decodeSSE(r io.Reader, dialect Dialect, emit emitFn) error {
	var m dialectMachine
	switch dialect {
	case DialectAnthropic:
		m = newAnthropicMachine(d.logger)
	default:
		m = newOpenAIMachine(d.logger)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufSize), maxBufSize)

	var eventName string
	var dataLines []string

	dispatch := func() (ok, terminal bool) {
		name := eventName
		data := strings.Join(dataLines, "\n")
		eventName = ""
		dataLines = dataLines[:0]
		if data == "" {
			return true, false
		}
		if strings.TrimSpace(data) == doneMarker {
			return m.finish(emit, true), true
		}
		return m.event(name, data, emit), false
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case line == "":
			ok, terminal := dispatch()
			if !ok {
				return nil
			}
			if terminal {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// SSE comment, ignored.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// id:, retry:, and unknown fields are ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Input ended without a trailing blank line: treat EOF as the event
	// boundary so a final complete event is not lost.
	if len(dataLines) > 0 {
		ok, terminal := dispatch()
		if !ok || terminal {
			return nil
		}
	}
	m.finish(emit, false)
	return nil
}
