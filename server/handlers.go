package server

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/internal/metrics"
	"github.com/GeorgiySurkov/multipinbot/store"
)

var unpinPattern = regexp.MustCompile(`^/unpin(\d+)(@\w+)?$`)

const genericFailureText = "Something went wrong. Please try again later."

// handleUpdate routes one Telegram update to its handler.
func (s *Server) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch {
	case msg.IsCommand() && (msg.Command() == "start" || msg.Command() == "help"):
		metrics.UpdateTotal.WithLabelValues("command_start").Inc()
		s.handleStart(ctx, msg)
	case msg.IsCommand() && msg.Command() == "pin":
		metrics.UpdateTotal.WithLabelValues("command_pin").Inc()
		s.handlePin(ctx, msg)
	case unpinPattern.MatchString(msg.Text):
		metrics.UpdateTotal.WithLabelValues("command_unpin").Inc()
		s.handleUnpin(ctx, msg)
	case s.botAddedToGroup(msg) || msg.GroupChatCreated:
		metrics.UpdateTotal.WithLabelValues("added_to_group").Inc()
		s.handleAddedToGroup(ctx, msg)
	case msg.NewChatTitle != "":
		metrics.UpdateTotal.WithLabelValues("new_title").Inc()
		s.handleNewTitle(ctx, msg)
	case msg.PinnedMessage != nil && msg.From != nil && msg.From.ID != s.bot.Self.ID:
		metrics.UpdateTotal.WithLabelValues("manual_pin").Inc()
		s.handleManualPin(ctx, msg)
	}
}

// handleStart handles the /start and /help commands.
func (s *Server) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.IsPrivate() {
		s.answer(msg, "Hi!\nI'm MultiPin Bot!\nAdd me to any group to pin multiple messages at the same time.")
		return
	}
	s.answer(msg, "To pin messages reply to it with /pin command.")
}

// handlePin handles the /pin command: track the replied-to message and
// reconcile the summary.
func (s *Server) handlePin(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.ReplyToMessage == nil {
		s.answer(msg, "To pin message reply to it with /pin command")
		return
	}
	if msg.ReplyToMessage.Text == "" {
		s.answer(msg, "Sorry, this type of message is not supported. For now I support only text messages.")
		return
	}

	chat, err := s.currentChat(ctx, msg)
	if err != nil {
		slog.Error("failed to load chat", "chat_id", msg.Chat.ID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}

	item, err := s.store.CreatePinnedItem(ctx, &store.PinnedItem{
		ChatID:            chat.ID,
		TelegramMessageID: msg.ReplyToMessage.MessageID,
		AuthorID:          msg.From.ID,
		SentTs:            int64(msg.ReplyToMessage.Date),
		Text:              msg.ReplyToMessage.Text,
	})
	if err != nil {
		if errors.Is(err, store.ErrItemExists) {
			s.answer(msg, "This message is already pinned!")
			return
		}
		slog.Error("failed to create pinned item", "chat_id", msg.Chat.ID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}

	if err := s.reconciler.Reconcile(ctx, chat, item); err != nil {
		slog.Error("failed to reconcile summary after pin",
			"chat_id", msg.Chat.ID, "item_id", item.ID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}

	s.reply(msg.Chat.ID, msg.ReplyToMessage.MessageID, "Successfully added to pinned messages!")
	slog.Info("pinned message",
		"message_id", item.TelegramMessageID, "chat_title", msg.Chat.Title, "chat_id", msg.Chat.ID)
}

// handleUnpin handles the /unpin<id> command: untrack the item and reconcile
// the summary.
func (s *Server) handleUnpin(ctx context.Context, msg *tgbotapi.Message) {
	match := unpinPattern.FindStringSubmatch(msg.Text)
	itemID64, err := strconv.ParseInt(match[1], 10, 32)
	if err != nil {
		s.answer(msg, "Message does not exist.")
		return
	}
	itemID := int32(itemID64)

	item, err := s.store.GetPinnedItem(ctx, itemID)
	if err != nil {
		slog.Error("failed to get pinned item", "item_id", itemID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}
	chat, err := s.store.GetChat(ctx, &store.FindChat{TelegramID: &msg.Chat.ID})
	if err != nil {
		slog.Error("failed to load chat", "chat_id", msg.Chat.ID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}
	// An item from another chat must look exactly like a missing one.
	if item == nil || chat == nil || item.ChatID != chat.ID {
		s.answer(msg, "Message does not exist.")
		return
	}

	if err := s.store.DeletePinnedItem(ctx, &store.DeletePinnedItem{ID: &item.ID}); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			s.answer(msg, "Message does not exist.")
			return
		}
		slog.Error("failed to delete pinned item", "item_id", itemID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}

	if err := s.reconciler.Reconcile(ctx, chat, nil); err != nil {
		slog.Error("failed to reconcile summary after unpin",
			"chat_id", msg.Chat.ID, "item_id", itemID, "error", err)
		s.answer(msg, genericFailureText)
		return
	}

	// Reply to the original message; it may have been deleted, so fall back
	// to a thumbnail of its text.
	if err := s.reply(msg.Chat.ID, item.TelegramMessageID, "Successfully removed from pinned messages!"); err != nil {
		s.answer(msg, fmt.Sprintf("Successfully removed from pinned messages %s !", messageThumbnail(item.Text)))
	}
	slog.Info("unpinned message",
		"message_id", item.TelegramMessageID, "chat_title", msg.Chat.Title, "chat_id", msg.Chat.ID)
}

// handleManualPin reacts to someone pinning a message by hand: reminds about
// /pin and re-pins the summary on top.
func (s *Server) handleManualPin(ctx context.Context, msg *tgbotapi.Message) {
	s.answer(msg, fmt.Sprintf("This group is using @%s. To pin a message reply to it with /pin command.", s.bot.Self.UserName))

	chat, err := s.currentChat(ctx, msg)
	if err != nil {
		slog.Error("failed to load chat", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	if err := s.reconciler.RestorePin(ctx, chat); err != nil {
		slog.Error("failed to re-pin summary", "chat_id", msg.Chat.ID, "error", err)
	}
}

// handleAddedToGroup greets the group and creates the chat row.
func (s *Server) handleAddedToGroup(ctx context.Context, msg *tgbotapi.Message) {
	s.answer(msg, fmt.Sprintf("Hi, I'm @%s. I can pin multiple messages in group.\n\n"+
		"To use my functionality you need to grant me rights to pin messages in group."+
		" To pin a message reply to it with /pin command.", s.bot.Self.UserName))

	if _, _, err := s.store.GetOrCreateChat(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
		slog.Error("failed to create chat", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	slog.Info("bot added to group", "chat_title", msg.Chat.Title, "chat_id", msg.Chat.ID)
}

// handleNewTitle keeps the stored chat title in sync.
func (s *Server) handleNewTitle(ctx context.Context, msg *tgbotapi.Message) {
	chat, created, err := s.store.GetOrCreateChat(ctx, msg.Chat.ID, msg.NewChatTitle)
	if err != nil {
		slog.Error("failed to load chat", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	if created {
		slog.Warn("chat was not in database before title change",
			"chat_title", msg.NewChatTitle, "chat_id", msg.Chat.ID)
		return
	}

	oldTitle := chat.Title
	title := msg.NewChatTitle
	if _, err := s.store.UpdateChat(ctx, &store.UpdateChat{ID: chat.ID, Title: &title}); err != nil {
		slog.Error("failed to update chat title", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	slog.Info("changed chat title", "chat_id", msg.Chat.ID, "from", oldTitle, "to", title)
}

// currentChat loads the chat row for the message, creating it lazily when
// the bot missed the added-to-group event.
func (s *Server) currentChat(ctx context.Context, msg *tgbotapi.Message) (*store.Chat, error) {
	chat, created, err := s.store.GetOrCreateChat(ctx, msg.Chat.ID, msg.Chat.Title)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Warn("chat has not been added to database when bot was added to group",
			"chat_title", msg.Chat.Title, "chat_id", msg.Chat.ID)
	}
	return chat, nil
}

func (s *Server) botAddedToGroup(msg *tgbotapi.Message) bool {
	for _, user := range msg.NewChatMembers {
		if user.ID == s.bot.Self.ID {
			return true
		}
	}
	return false
}

// answer sends a plain text message to the chat the message came from.
func (s *Server) answer(msg *tgbotapi.Message, text string) {
	if _, err := s.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
		slog.Warn("failed to answer", "chat_id", msg.Chat.ID, "error", err)
	}
}

// reply sends a message replying to another one.
func (s *Server) reply(chatID int64, replyTo int, text string) error {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyToMessageID = replyTo
	_, err := s.bot.Send(reply)
	return err
}

// messageThumbnail shortens a message text for confirmations referencing a
// deleted message.
func messageThumbnail(text string) string {
	runes := []rune(text)
	if len(runes) > 10 {
		return string(runes[:8]) + "..."
	}
	return text
}
