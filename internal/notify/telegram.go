// Package notify delivers manager notifications over Telegram.
package notify

import (
	"context"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramClient is the subset of the bot API used by the notifier.
type TelegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends messages and documents to a manager chat,
// paced to stay under the Telegram API rate limits.
type TelegramNotifier struct {
	client  TelegramClient
	chatID  int64
	limiter *rate.Limiter
	log     *zerolog.Logger
}

// NewTelegramNotifier connects to the bot API with the given token.
func NewTelegramNotifier(token string, chatID int64, log *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Telegram notifier connected")
	return newNotifier(api, chatID, log), nil
}

func newNotifier(client TelegramClient, chatID int64, log *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		client:  client,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		log:     log,
	}
}

// SendMessage delivers a plain text message to the manager chat.
func (n *TelegramNotifier) SendMessage(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.client.Send(msg); err != nil {
		n.log.Error().Err(err).Msg("Failed to send telegram message")
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendDocument delivers a file with a caption to the manager chat.
func (n *TelegramNotifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(n.chatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if _, err := n.client.Send(doc); err != nil {
		n.log.Error().Err(err).Str("filename", filename).Msg("Failed to send telegram document")
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}
