package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// TelegramConfig holds configuration for the Telegram adapter.
type TelegramConfig struct {
	// Token is the bot token from @BotFather (required).
	Token string

	// MaxReconnectAttempts bounds reconnection after polling failures.
	MaxReconnectAttempts int

	// ReconnectDelay is the wait between reconnection attempts.
	ReconnectDelay time.Duration

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *TelegramConfig) Validate() error {
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Telegram is the long-polling Telegram adapter. Inbound text messages
// become ChannelMessages with the chat id as sender; Send parses the
// recipient back to a chat id.
type Telegram struct {
	config   TelegramConfig
	bot      *bot.Bot
	messages chan models.ChannelMessage
	logger   *slog.Logger

	statusMu sync.RWMutex
	status   Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTelegram creates a Telegram adapter with the given configuration.
func NewTelegram(config TelegramConfig) (*Telegram, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Telegram{
		config:   config,
		messages: make(chan models.ChannelMessage, 100),
		logger:   config.Logger.With("component", "channels", "adapter", "telegram"),
	}, nil
}

func (t *Telegram) Type() models.ChannelType { return models.ChannelTelegram }

// Start authenticates the bot and begins long polling.
func (t *Telegram) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	b, err := bot.New(t.config.Token)
	if err != nil {
		t.updateStatus(false, fmt.Sprintf("create bot: %v", err))
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = b
	t.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, t.handleMessage)

	t.wg.Add(1)
	go t.runWithReconnection(ctx)

	t.logger.Info("telegram adapter started")
	return nil
}

// runWithReconnection runs the polling loop, retrying with a delay on
// failures up to MaxReconnectAttempts.
func (t *Telegram) runWithReconnection(ctx context.Context) {
	defer t.wg.Done()
	defer close(t.messages)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			t.updateStatus(false, "")
			return
		default:
		}

		t.updateStatus(true, "")
		err := t.poll(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			t.updateStatus(false, "")
			return
		}

		attempts++
		t.updateStatus(false, fmt.Sprintf("polling error (attempt %d/%d)", attempts, t.config.MaxReconnectAttempts))
		t.logger.Error("telegram polling error",
			"error", err,
			"attempt", attempts,
			"max_attempts", t.config.MaxReconnectAttempts)
		if attempts >= t.config.MaxReconnectAttempts {
			t.logger.Error("max reconnection attempts reached, stopping adapter")
			return
		}

		select {
		case <-ctx.Done():
			t.updateStatus(false, "")
			return
		case <-time.After(t.config.ReconnectDelay):
			t.logger.Info("attempting to reconnect")
		}
	}
}

// poll blocks in long polling until the context is cancelled.
func (t *Telegram) poll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("telegram polling panic: %v", r)
		}
	}()
	t.bot.Start(ctx)
	return ctx.Err()
}

// handleMessage normalizes an inbound update into a ChannelMessage.
func (t *Telegram) handleMessage(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	m := update.Message

	msg := models.ChannelMessage{
		Channel:   models.ChannelTelegram,
		Sender:    strconv.FormatInt(m.Chat.ID, 10),
		Content:   m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
		Metadata: map[string]any{
			"message_id": m.ID,
			"chat_id":    m.Chat.ID,
		},
	}
	if m.From != nil {
		msg.Metadata["user_id"] = m.From.ID
		msg.Metadata["user_first"] = m.From.FirstName
		msg.Metadata["user_last"] = m.From.LastName
	}

	select {
	case t.messages <- msg:
	case <-ctx.Done():
	default:
		t.logger.Warn("messages channel full, dropping message", "chat_id", m.Chat.ID)
	}
}

// Stop cancels polling and waits for the loop to drain.
func (t *Telegram) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.logger.Info("telegram adapter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telegram) Messages() <-chan models.ChannelMessage { return t.messages }

// Send delivers assistant text to the chat identified by recipient.
func (t *Telegram) Send(ctx context.Context, recipient, text string) error {
	if t.bot == nil {
		return errors.New("telegram: adapter not started")
	}
	if text == "" {
		return nil
	}
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid recipient %q: %w", recipient, err)
	}
	_, err = t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: send to chat %d: %w", chatID, err)
	}
	return nil
}

// Status reports the adapter's connection state.
func (t *Telegram) Status() Status {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

func (t *Telegram) updateStatus(connected bool, errMsg string) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	t.status = Status{Connected: connected, Error: errMsg}
}
