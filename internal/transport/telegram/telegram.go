// Package telegram adapts the transport and presentation contracts to the
// Telegram Bot API. It renders OutboundMessage choices as reply keyboards
// and feeds inbound updates into the conversation engine.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heartpipes/clubbot/internal/transport"
)

// Client implements transport.Sender over the Bot API.
type Client struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

var _ transport.Sender = (*Client)(nil)

// NewClient authenticates against the Bot API with the given token.
func NewClient(token string, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticating bot: %w", err)
	}
	logger.Info("telegram bot authorized", slog.String("username", bot.Self.UserName))
	return &Client{bot: bot, logger: logger}, nil
}

// Send delivers one message to one chat. The Bot API client has no context
// support of its own, so cancellation is checked before the call; an
// in-flight request runs to completion.
func (c *Client) Send(ctx context.Context, chatID int64, msg transport.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var chattable tgbotapi.Chattable
	if msg.PhotoFileID != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(msg.PhotoFileID))
		photo.Caption = msg.Caption
		chattable = photo
	} else {
		text := tgbotapi.NewMessage(chatID, msg.Text)
		switch {
		case len(msg.Choices) > 0:
			text.ReplyMarkup = keyboard(msg.Choices)
		case msg.RemoveChoices:
			text.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		}
		chattable = text
	}

	if _, err := c.bot.Send(chattable); err != nil {
		return fmt.Errorf("telegram: sending to %d: %w", chatID, err)
	}
	return nil
}

func keyboard(choices [][]string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(choices))
	for _, row := range choices {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, buttons)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}
