package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers alert messages through a bot.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

func NewTelegramSender(botToken string) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramSender{api: api}, nil
}

// Send delivers text to a chat. chatID is either a numeric chat id or an
// @channel username.
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", chatID, err)
		}
		msg = tgbotapi.NewMessage(id, text)
	}
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
