// Package notify alerts the operator when a loop stops for good. A
// breaker trip means the matching logic needs a human look before the
// bot restarts, so the hard stop must be visible, not just logged.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends operator alerts. A nil *Notifier is valid and silently
// drops alerts, for deployments without a configured channel.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// New creates a Telegram-backed Notifier.
func New(token string, chatID int64, log *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

// Alert sends a message to the operator channel. Failures are logged
// and swallowed; alerting is best-effort.
func (n *Notifier) Alert(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error("send operator alert", "error", err)
	}
}
