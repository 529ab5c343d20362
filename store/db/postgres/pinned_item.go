package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/store"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// CreatePinnedItem creates a pinned item.
func (d *DB) CreatePinnedItem(ctx context.Context, create *store.PinnedItem) (*store.PinnedItem, error) {
	stmt := `
		INSERT INTO pinned_item (chat_id, telegram_message_id, author_id, sent_ts, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, chat_id, telegram_message_id, author_id, sent_ts, text
	`
	var item store.PinnedItem
	err := d.db.QueryRowContext(ctx, stmt,
		create.ChatID,
		create.TelegramMessageID,
		create.AuthorID,
		create.SentTs,
		create.Text,
	).Scan(
		&item.ID,
		&item.ChatID,
		&item.TelegramMessageID,
		&item.AuthorID,
		&item.SentTs,
		&item.Text,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, store.ErrItemExists
		}
		return nil, errors.Wrap(err, "failed to create pinned item")
	}
	return &item, nil
}

// ListPinnedItems lists pinned items newest first, ties broken toward the
// higher id.
func (d *DB) ListPinnedItems(ctx context.Context, find *store.FindPinnedItem) ([]*store.PinnedItem, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, fmt.Sprintf("id = $%d", len(args)+1)), append(args, *find.ID)
	}
	if find.ChatID != nil {
		where, args = append(where, fmt.Sprintf("chat_id = $%d", len(args)+1)), append(args, *find.ChatID)
	}

	query := `SELECT id, chat_id, telegram_message_id, author_id, sent_ts, text
		FROM pinned_item
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY sent_ts DESC, id DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pinned items")
	}
	defer rows.Close()

	var items []*store.PinnedItem
	for rows.Next() {
		var item store.PinnedItem
		if err := rows.Scan(
			&item.ID,
			&item.ChatID,
			&item.TelegramMessageID,
			&item.AuthorID,
			&item.SentTs,
			&item.Text,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan pinned item")
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// DeletePinnedItem deletes a pinned item.
func (d *DB) DeletePinnedItem(ctx context.Context, delete *store.DeletePinnedItem) error {
	where, args := []string{"1 = 1"}, []any{}

	if delete.ID != nil {
		where, args = append(where, fmt.Sprintf("id = $%d", len(args)+1)), append(args, *delete.ID)
	}
	if delete.ChatID != nil {
		where, args = append(where, fmt.Sprintf("chat_id = $%d", len(args)+1)), append(args, *delete.ChatID)
	}
	if delete.TelegramMessageID != nil {
		where, args = append(where, fmt.Sprintf("telegram_message_id = $%d", len(args)+1)), append(args, *delete.TelegramMessageID)
	}
	if len(where) == 1 {
		return errors.New("no delete condition")
	}

	stmt := `DELETE FROM pinned_item WHERE ` + strings.Join(where, " AND ")
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "failed to delete pinned item")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrItemNotFound
	}
	return nil
}
