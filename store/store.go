// Package store provides database access to all raw objects.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/internal/profile"
)

// Sentinel errors surfaced by store operations. Drivers translate their
// engine-specific failures into these so callers can branch with errors.Is.
var (
	// ErrItemExists means the (chat, telegram message) pair is already tracked.
	ErrItemExists = errors.New("pinned item already exists")
	// ErrItemNotFound means the delete or lookup target does not exist.
	ErrItemNotFound = errors.New("pinned item not found")
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() any
	Close() error
	Migrate(ctx context.Context) error

	CreateChat(ctx context.Context, create *Chat) (*Chat, error)
	GetChat(ctx context.Context, find *FindChat) (*Chat, error)
	UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error)

	CreatePinnedItem(ctx context.Context, create *PinnedItem) (*PinnedItem, error)
	ListPinnedItems(ctx context.Context, find *FindPinnedItem) ([]*PinnedItem, error)
	DeletePinnedItem(ctx context.Context, delete *DeletePinnedItem) error
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}
