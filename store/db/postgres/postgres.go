package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/GeorgiySurkov/multipinbot/internal/profile"
	"github.com/GeorgiySurkov/multipinbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database specified by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: db, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() any {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS chat (
			id SERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			summary_message_id INTEGER,
			summary_text TEXT,
			summary_pinned BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS pinned_item (
			id SERIAL PRIMARY KEY,
			chat_id INTEGER NOT NULL REFERENCES chat (id),
			telegram_message_id INTEGER NOT NULL,
			author_id BIGINT NOT NULL,
			sent_ts BIGINT NOT NULL,
			text TEXT NOT NULL,
			UNIQUE (chat_id, telegram_message_id)
		);
	`
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}
