// Package telegram implements the summary.Gateway over the Telegram Bot API.
package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/internal/metrics"
	"github.com/GeorgiySurkov/multipinbot/summary"
)

// Gateway sends, edits and pins messages through a Telegram bot and resolves
// chat member display names. Telegram API failures are translated into the
// typed errors of the summary package.
type Gateway struct {
	bot *tgbotapi.BotAPI
}

// NewGateway creates a gateway over an authorized bot instance.
func NewGateway(bot *tgbotapi.BotAPI) *Gateway {
	return &Gateway{bot: bot}
}

// SendMessage sends a plain text message and returns the new message id.
func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	sent, err := g.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		record("send_message", err)
		return 0, mapError(err)
	}
	record("send_message", nil)
	return sent.MessageID, nil
}

// EditMessageText replaces the text of an existing message.
func (g *Gateway) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := g.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	record("edit_message_text", err)
	return mapError(err)
}

// PinMessage pins a message in the chat.
func (g *Gateway) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := g.bot.Request(tgbotapi.PinChatMessageConfig{
		ChatID:    chatID,
		MessageID: messageID,
	})
	record("pin_message", err)
	return mapError(err)
}

// ResolveMemberName resolves a chat member's display name: the @username
// when set, the first and last name otherwise.
func (g *Gateway) ResolveMemberName(ctx context.Context, chatID int64, userID int64) (string, error) {
	member, err := g.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		record("get_chat_member", err)
		return "", mapError(err)
	}
	record("get_chat_member", nil)
	if member.User == nil {
		return "", summary.ErrMemberNotFound
	}
	if member.User.UserName != "" {
		return "@" + member.User.UserName, nil
	}
	name := member.User.FirstName
	if member.User.LastName != "" {
		name += " " + member.User.LastName
	}
	return name, nil
}

// mapError translates Telegram API errors into the summary package's typed
// errors so the reconciler can branch on them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	desc := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == 429:
		return errors.Wrap(summary.ErrRateLimited, apiErr.Message)
	case strings.Contains(desc, "not enough rights"),
		strings.Contains(desc, "have no rights"):
		return errors.Wrap(summary.ErrPermissionDenied, apiErr.Message)
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message to pin not found"):
		return errors.Wrap(summary.ErrMessageNotFound, apiErr.Message)
	case strings.Contains(desc, "user not found"),
		strings.Contains(desc, "member not found"),
		strings.Contains(desc, "participant_id_invalid"):
		return errors.Wrap(summary.ErrMemberNotFound, apiErr.Message)
	}
	return err
}

func record(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayCallTotal.WithLabelValues(method, result).Inc()
}

// Ensure Gateway implements summary.Gateway.
var _ summary.Gateway = (*Gateway)(nil)
