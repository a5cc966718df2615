package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// ConsoleSender is the fixed sender id for the local console surface.
const ConsoleSender = "console"

// Console is the stdin/stdout adapter for local use: each input line is
// one user message, assistant output is printed as it arrives.
type Console struct {
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
	messages chan models.ChannelMessage

	mu      sync.Mutex
	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsole creates a console adapter over the given streams.
func NewConsole(in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		in:       in,
		out:      out,
		logger:   logger.With("component", "channels", "adapter", "console"),
		messages: make(chan models.ChannelMessage, 16),
		done:     make(chan struct{}),
	}
}

func (c *Console) Type() models.ChannelType { return models.ChannelConsole }

// Start begins reading lines from the input stream.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go func() {
		defer close(c.messages)
		defer close(c.done)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			msg := models.ChannelMessage{
				Channel:   models.ChannelConsole,
				Sender:    ConsoleSender,
				Content:   line,
				Timestamp: time.Now(),
			}
			select {
			case c.messages <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("console input closed", "error", err)
		}
	}()
	return nil
}

// Stop stops the reader. The input stream itself stays open; the reader
// goroutine exits at its next line or when the stream ends.
func (c *Console) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Console) Messages() <-chan models.ChannelMessage { return c.messages }

// Send prints assistant text. Deltas stream without trailing newlines;
// callers terminate a turn by sending text ending in "\n".
func (c *Console) Send(_ context.Context, _ string, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fmt.Fprint(c.out, text)
	return err
}
