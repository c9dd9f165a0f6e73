// Package telegram delivers notices as Telegram messages.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/openclay/herald/internal/notices/backend"
)

// FormatMessage is the single template this backend renders.
const FormatMessage = "message.txt"

const defaultSensitivity = 2

// Sender posts one message to a chat. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Config carries telegram delivery settings.
type Config struct {
	// Token authenticates against the Bot API.
	Token string
	// Sensitivity overrides the default preference threshold.
	Sensitivity int
	// RateLimit caps outbound messages per second; zero disables the cap.
	RateLimit float64
}

// Backend delivers notices over Telegram.
type Backend struct {
	cfg     Config
	sender  Sender
	limiter *rate.Limiter
}

// New builds the backend with a real bot client.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("new telegram bot: %w", err)
	}
	return NewWithSender(cfg, bot)
}

// NewWithSender builds the backend around an existing sender.
func NewWithSender(cfg Config, sender Sender) (*Backend, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Backend{cfg: cfg, sender: sender, limiter: limiter}, nil
}

func (b *Backend) Slug() string  { return "telegram" }
func (b *Backend) Title() string { return "Telegram" }

func (b *Backend) Sensitivity() int {
	if b.cfg.Sensitivity > 0 {
		return b.cfg.Sensitivity
	}
	return defaultSensitivity
}

func (b *Backend) Formats() []string {
	return []string{FormatMessage}
}

// Send posts the rendered message to the recipient's chat. Recipients
// without a linked chat cannot be delivered to.
func (b *Backend) Send(ctx context.Context, rendered map[string]string, recipient backend.Recipient) error {
	if recipient.TelegramChatID == 0 {
		return fmt.Errorf("recipient %s has no telegram chat", recipient.UserID)
	}
	text := strings.TrimSpace(rendered[FormatMessage])
	if text == "" {
		return fmt.Errorf("rendered message is empty")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.sender.Send(tele.ChatID(recipient.TelegramChatID), text); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
