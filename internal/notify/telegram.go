package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram messages each admin of the mini-app bot directly.
type Telegram struct {
	api     telegramSender
	chatIDs []int64
}

// NewTelegram authorizes the bot token and targets the given admin chats.
func NewTelegram(token string, chatIDs []int64) (*Telegram, error) {
	if len(chatIDs) == 0 {
		return nil, errors.New("no telegram admin ids configured")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{api: api, chatIDs: chatIDs}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends text to every admin chat, continuing past failures.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, id := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
