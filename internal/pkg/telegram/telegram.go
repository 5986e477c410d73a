// Package telegram talks to the Telegram Bot API: it sends chat messages and
// receives bot commands either by long polling or through a webhook.
package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/atomic"
)

// SecretTokenHeader carries the webhook secret set with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

var (
	// ErrTokenRequired is returned by New without a bot token.
	ErrTokenRequired = errors.New("telegram: bot token is required")
	// ErrInvalidChatID is returned when a chat id is not an integer.
	ErrInvalidChatID = errors.New("telegram: invalid chat id")
	// ErrDisabled is returned by Disabled for every send.
	ErrDisabled = errors.New("telegram: bot is disabled")
	// ErrAlreadyPolling is returned when Poll is called more than once.
	ErrAlreadyPolling = errors.New("telegram: already polling")
	// ErrInvalidSecret is returned by ParseWebhook when the secret header does not match.
	ErrInvalidSecret = errors.New("telegram: invalid webhook secret")
)

// Sender sends a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Update is a received bot message reduced to what command handlers need.
type Update struct {
	ID     int
	ChatID string
	Text   string
	// Command is the command name without the slash or bot mention, "" for
	// plain text.
	Command string
	// Args is the trimmed text after the command.
	Args string
}

// Config configures New.
type Config struct {
	Token string
	// Endpoint overrides tgbotapi.APIEndpoint, a format with the token and
	// method placeholders.
	Endpoint string
	Client   *http.Client
	// PollTimeout is the getUpdates long poll timeout in seconds.
	PollTimeout int
	// WebhookSecret is compared to SecretTokenHeader by ParseWebhook.
	WebhookSecret string
}

// Bot is a Telegram bot client.
type Bot struct {
	api           *tgbotapi.BotAPI
	pollTimeout   int
	webhookSecret string
	polled        atomic.Bool
}

var setLoggerOnce sync.Once

// New authenticates with getMe and returns a Bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrTokenRequired
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}

	setLoggerOnce.Do(func() {
		//nolint:errcheck // only fails on a nil logger
		_ = tgbotapi.SetLogger(slogAdapter{})
	})

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("telegram: get me: %w", err)
	}

	return &Bot{api: api, pollTimeout: cfg.PollTimeout, webhookSecret: cfg.WebhookSecret}, nil
}

// Username returns the bot handle without the leading @.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send posts text to chatID.
func (b *Bot) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Poll long polls getUpdates and calls handle for each message until ctx is
// done. handle runs on the polling goroutine, one update at a time. A Bot
// polls at most once in its lifetime.
func (b *Bot) Poll(ctx context.Context, handle func(context.Context, Update)) error {
	if b.polled.Swap(true) {
		return ErrAlreadyPolling
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	cfg.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if upd, ok := fromAPI(u); ok {
				handle(ctx, upd)
			}
		}
	}
}

// ParseWebhook checks the secret header and decodes the update in r. ok is
// false for updates that carry no message.
func (b *Bot) ParseWebhook(r *http.Request) (upd Update, ok bool, err error) {
	if b.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretTokenHeader)), []byte(b.webhookSecret)) != 1 {
		return Update{}, false, ErrInvalidSecret
	}

	u, err := b.api.HandleUpdate(r)
	if err != nil {
		return Update{}, false, err
	}

	upd, ok = fromAPI(*u)
	return upd, ok, nil
}

func fromAPI(u tgbotapi.Update) (Update, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Update{}, false
	}

	upd := Update{
		ID:     u.UpdateID,
		ChatID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:   msg.Text,
	}

	switch {
	case msg.IsCommand():
		upd.Command = msg.Command()
		upd.Args = strings.TrimSpace(msg.CommandArguments())
	case strings.HasPrefix(msg.Text, "/"):
		// clients that send no entities
		head, rest, _ := strings.Cut(msg.Text, " ")
		head, _, _ = strings.Cut(strings.TrimPrefix(head, "/"), "@")
		upd.Command = head
		upd.Args = strings.TrimSpace(rest)
	}

	return upd, true
}

// Disabled is a Sender for deployments without a bot.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string) error {
	return ErrDisabled
}

type slogAdapter struct{}

func (slogAdapter) Println(v ...any) {
	slog.Debug("telegram", "msg", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (slogAdapter) Printf(format string, v ...any) {
	slog.Debug("telegram", "msg", fmt.Sprintf(format, v...))
}
