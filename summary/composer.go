// Package summary implements the pinned-messages summary: composing the
// aggregated text and reconciling it with the message pinned on Telegram.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/store"
)

const (
	// MaxSummaryLength is the Telegram message length limit.
	MaxSummaryLength = 4096

	// EmptySummaryText is rendered when a chat has no pinned items.
	EmptySummaryText = "No pinned messages!"

	entryTimeLayout = "02 January, 15:04"
)

// NameResolver resolves a chat member's display name.
// Returns an error wrapping ErrMemberNotFound if the user left the chat.
type NameResolver func(ctx context.Context, chatID int64, userID int64) (string, error)

// Compose renders the summary text for the given items. Items render newest
// first by sent time, ties broken toward the higher id. Pure: no mutation,
// no partial output.
//
// Returns ErrTextTooLong when the rendered text exceeds MaxSummaryLength.
// A resolver failure fails the composition as a whole.
func Compose(ctx context.Context, chatID int64, items []*store.PinnedItem, resolve NameResolver) (string, error) {
	if len(items) == 0 {
		return EmptySummaryText, nil
	}

	ordered := make([]*store.PinnedItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SentTs != ordered[j].SentTs {
			return ordered[i].SentTs > ordered[j].SentTs
		}
		return ordered[i].ID > ordered[j].ID
	})

	entries := make([]string, 0, len(ordered))
	for _, item := range ordered {
		name, err := resolve(ctx, chatID, item.AuthorID)
		if err != nil {
			return "", errors.Wrapf(err, "failed to resolve author of item %d", item.ID)
		}
		sent := time.Unix(item.SentTs, 0).Format(entryTimeLayout)
		entries = append(entries, fmt.Sprintf(
			"%s at %s:\n%s\n/unpin%d to unpin this message",
			name, sent, item.Text, item.ID,
		))
	}

	// Telegram counts the limit in characters, not bytes.
	text := strings.Join(entries, "\n\n")
	if utf8.RuneCountInString(text) > MaxSummaryLength {
		return "", ErrTextTooLong
	}
	return text, nil
}
