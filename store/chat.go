package store

import "context"

// ChatSummary is the state of a chat's aggregated pinned-messages summary.
// MessageID and Text are either both set or both nil: a cached text without a
// sent message (or the reverse) is unrepresentable. Pinned is meaningful only
// while MessageID is set.
type ChatSummary struct {
	// MessageID is the Telegram id of the summary message, nil if the summary
	// has never been sent.
	MessageID *int
	// Text is the last rendered summary text, used to skip redundant edits.
	Text *string
	// Pinned reports whether the summary message is currently pinned.
	Pinned bool
}

// Chat represents a group the bot manages. Each chat holds at most one
// summary message.
type Chat struct {
	ID         int32
	TelegramID int64
	Title      string
	Summary    ChatSummary
}

// FindChat is the find condition for chats.
type FindChat struct {
	ID         *int32
	TelegramID *int64
}

// UpdateChat is the update condition for a chat. Nil fields are left
// untouched. Summary replaces the whole summary triplet in one write.
type UpdateChat struct {
	ID      int32
	Title   *string
	Summary *ChatSummary
}

// GetChat gets a chat matching the find condition, or nil if none exists.
func (s *Store) GetChat(ctx context.Context, find *FindChat) (*Chat, error) {
	return s.driver.GetChat(ctx, find)
}

// CreateChat creates a chat row with no summary.
func (s *Store) CreateChat(ctx context.Context, create *Chat) (*Chat, error) {
	return s.driver.CreateChat(ctx, create)
}

// UpdateChat updates a chat row.
func (s *Store) UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error) {
	return s.driver.UpdateChat(ctx, update)
}

// GetOrCreateChat returns the chat with the given Telegram id, creating it
// with the given title if the bot has not seen the chat before. The second
// return value reports whether a row was created.
func (s *Store) GetOrCreateChat(ctx context.Context, telegramID int64, title string) (*Chat, bool, error) {
	chat, err := s.driver.GetChat(ctx, &FindChat{TelegramID: &telegramID})
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		return chat, false, nil
	}
	chat, err = s.driver.CreateChat(ctx, &Chat{
		TelegramID: telegramID,
		Title:      title,
	})
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}
