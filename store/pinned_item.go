package store

import "context"

// PinnedItem represents one tracked message included in a chat's summary.
type PinnedItem struct {
	ID     int32
	ChatID int32
	// TelegramMessageID is the id of the original chat message being tracked.
	// Unique together with ChatID: the same message cannot be tracked twice.
	TelegramMessageID int
	AuthorID          int64
	// SentTs is the Unix timestamp the original message was sent at.
	SentTs int64
	Text   string
}

// FindPinnedItem is the find condition for pinned items.
// Results are always ordered newest first (sent_ts DESC, id DESC).
type FindPinnedItem struct {
	ID     *int32
	ChatID *int32
	Limit  *int
}

// DeletePinnedItem is the delete condition for a pinned item. Either ID or
// the (ChatID, TelegramMessageID) pair must be set.
type DeletePinnedItem struct {
	ID                *int32
	ChatID            *int32
	TelegramMessageID *int
}

// CreatePinnedItem creates a pinned item.
// Returns ErrItemExists if the (chat, telegram message) pair is already tracked.
func (s *Store) CreatePinnedItem(ctx context.Context, create *PinnedItem) (*PinnedItem, error) {
	return s.driver.CreatePinnedItem(ctx, create)
}

// ListPinnedItems lists pinned items newest first.
func (s *Store) ListPinnedItems(ctx context.Context, find *FindPinnedItem) ([]*PinnedItem, error) {
	return s.driver.ListPinnedItems(ctx, find)
}

// GetPinnedItem gets a single pinned item by id, or nil if none exists.
func (s *Store) GetPinnedItem(ctx context.Context, id int32) (*PinnedItem, error) {
	list, err := s.driver.ListPinnedItems(ctx, &FindPinnedItem{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeletePinnedItem deletes a pinned item.
// Returns ErrItemNotFound if no row matches the condition.
func (s *Store) DeletePinnedItem(ctx context.Context, delete *DeletePinnedItem) error {
	return s.driver.DeletePinnedItem(ctx, delete)
}
