package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/store"
)

// CreateChat creates a chat row with no summary.
func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	stmt := `
		INSERT INTO chat (telegram_id, title)
		VALUES (?, ?)
		RETURNING id, telegram_id, title, summary_message_id, summary_text, summary_pinned
	`
	chat, err := scanChat(d.db.QueryRowContext(ctx, stmt, create.TelegramID, create.Title))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat")
	}
	return chat, nil
}

// GetChat gets a chat matching the find condition, or nil if none exists.
func (d *DB) GetChat(ctx context.Context, find *store.FindChat) (*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.TelegramID != nil {
		where, args = append(where, "telegram_id = ?"), append(args, *find.TelegramID)
	}

	query := `SELECT id, telegram_id, title, summary_message_id, summary_text, summary_pinned
		FROM chat
		WHERE ` + strings.Join(where, " AND ")

	chat, err := scanChat(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get chat")
	}
	return chat, nil
}

// UpdateChat updates a chat row. The summary triplet is replaced as a whole.
func (d *DB) UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error) {
	set, args := []string{}, []any{}

	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Summary != nil {
		set = append(set, "summary_message_id = ?", "summary_text = ?", "summary_pinned = ?")
		args = append(args, update.Summary.MessageID, update.Summary.Text, update.Summary.Pinned)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	stmt := `UPDATE chat SET ` + strings.Join(set, ", ") + ` WHERE id = ?
		RETURNING id, telegram_id, title, summary_message_id, summary_text, summary_pinned`
	chat, err := scanChat(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update chat")
	}
	return chat, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*store.Chat, error) {
	var chat store.Chat
	var messageID sql.NullInt64
	var text sql.NullString
	if err := row.Scan(
		&chat.ID,
		&chat.TelegramID,
		&chat.Title,
		&messageID,
		&text,
		&chat.Summary.Pinned,
	); err != nil {
		return nil, err
	}
	if messageID.Valid {
		id := int(messageID.Int64)
		chat.Summary.MessageID = &id
	}
	if text.Valid {
		chat.Summary.Text = &text.String
	}
	return &chat, nil
}
