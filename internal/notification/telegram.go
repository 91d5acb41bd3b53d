package notification

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramChannel пишет получателю в чат с ботом.
type TelegramChannel struct {
	bot *bot.Bot
}

func NewTelegramChannel(token string) (*TelegramChannel, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{bot: b}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if msg.Recipient.TelegramChatID == nil {
		return ErrNoAddress
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *msg.Recipient.TelegramChatID,
		Text:      msg.Text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
