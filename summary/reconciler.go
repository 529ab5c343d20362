package summary

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/GeorgiySurkov/multipinbot/internal/metrics"
	"github.com/GeorgiySurkov/multipinbot/store"
)

// User-facing notifications sent by the reconciler.
const (
	overflowNotice  = "Too much pinned messages.\nUnpin some messages to free space."
	pinRightsNotice = "I need rights to pin messages."
)

// Gateway is the messaging surface consumed by the reconciler: sending,
// editing and pinning messages, and resolving member display names.
// Implementations translate platform failures into the typed errors of this
// package.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	PinMessage(ctx context.Context, chatID int64, messageID int) error
	ResolveMemberName(ctx context.Context, chatID int64, userID int64) (string, error)
}

// ItemStore is the slice of the store the reconciler needs. *store.Store
// satisfies it.
type ItemStore interface {
	GetChat(ctx context.Context, find *store.FindChat) (*store.Chat, error)
	ListPinnedItems(ctx context.Context, find *store.FindPinnedItem) ([]*store.PinnedItem, error)
	DeletePinnedItem(ctx context.Context, delete *store.DeletePinnedItem) error
	UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error)
}

// Reconciler converges the summary message pinned on Telegram with the
// chat's current pinned item set.
type Reconciler struct {
	store   ItemStore
	gateway Gateway
	locks   *chatLocker
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(itemStore ItemStore, gateway Gateway) *Reconciler {
	return &Reconciler{
		store:   itemStore,
		gateway: gateway,
		locks:   newChatLocker(),
	}
}

// Reconcile establishes or restores the summary invariant for the chat after
// an item-set change. Pass newItem when the change was an addition so an
// over-limit summary can be rolled back by discarding it.
//
// Runs for the same chat are serialized; runs for different chats proceed in
// parallel. On success chat.Summary reflects the persisted state.
func (r *Reconciler) Reconcile(ctx context.Context, chat *store.Chat, newItem *store.PinnedItem) error {
	r.locks.Lock(chat.TelegramID)
	defer r.locks.Unlock(chat.TelegramID)

	err := r.reconcile(ctx, chat, newItem)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReconcileTotal.WithLabelValues("ok").Inc()
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, chat *store.Chat, newItem *store.PinnedItem) error {
	// The caller loaded its chat snapshot before the lock was acquired, so a
	// run that finished in between may have changed the summary state already.
	// Deciding create-vs-edit on the stale snapshot would send a second
	// summary message; re-read the row now that the lock is held.
	if err := r.refreshChat(ctx, chat); err != nil {
		return err
	}

	text, err := r.candidateText(ctx, chat, newItem)
	if err != nil {
		return err
	}

	isUpdated := chat.Summary.Text == nil || *chat.Summary.Text != text

	next := store.ChatSummary{
		MessageID: chat.Summary.MessageID,
		Text:      &text,
		Pinned:    chat.Summary.Pinned,
	}
	var pinErr error

	if chat.Summary.MessageID == nil {
		// No summary has ever been sent to this chat.
		messageID, err := r.gateway.SendMessage(ctx, chat.TelegramID, text)
		if err != nil {
			return errors.Wrap(err, "failed to send summary message")
		}
		next.MessageID = &messageID
		next.Pinned, pinErr = r.tryPin(ctx, chat.TelegramID, messageID)
	} else {
		if isUpdated {
			if err := r.gateway.EditMessageText(ctx, chat.TelegramID, *chat.Summary.MessageID, text); err != nil {
				if errors.Is(err, ErrMessageNotFound) {
					return r.repairLostSummary(ctx, chat)
				}
				return errors.Wrap(err, "failed to edit summary message")
			}
		}
		if !chat.Summary.Pinned {
			// Pin rights may have been granted since the last failed attempt.
			next.Pinned, pinErr = r.tryPin(ctx, chat.TelegramID, *chat.Summary.MessageID)
		}
	}

	updated, err := r.store.UpdateChat(ctx, &store.UpdateChat{ID: chat.ID, Summary: &next})
	if err != nil {
		return errors.Wrap(err, "failed to persist summary state")
	}
	chat.Summary = updated.Summary

	// A pin failure other than missing rights surfaces after the send/edit
	// result has been persisted, so the summary message is not orphaned.
	return pinErr
}

// RestorePin re-pins the summary after someone pinned another message by
// hand, which replaces the summary as the chat's pinned message. Missing
// rights follow the same notify-and-continue policy as a first pin.
func (r *Reconciler) RestorePin(ctx context.Context, chat *store.Chat) error {
	r.locks.Lock(chat.TelegramID)
	defer r.locks.Unlock(chat.TelegramID)

	if err := r.refreshChat(ctx, chat); err != nil {
		return err
	}
	if chat.Summary.MessageID == nil {
		return nil
	}

	pinned, pinErr := r.tryPin(ctx, chat.TelegramID, *chat.Summary.MessageID)
	next := store.ChatSummary{
		MessageID: chat.Summary.MessageID,
		Text:      chat.Summary.Text,
		Pinned:    pinned,
	}
	updated, err := r.store.UpdateChat(ctx, &store.UpdateChat{ID: chat.ID, Summary: &next})
	if err != nil {
		return errors.Wrap(err, "failed to persist pin state")
	}
	chat.Summary = updated.Summary
	return pinErr
}

// refreshChat replaces the snapshot's summary state with the current row.
// Must be called with the chat lock held.
func (r *Reconciler) refreshChat(ctx context.Context, chat *store.Chat) error {
	current, err := r.store.GetChat(ctx, &store.FindChat{ID: &chat.ID})
	if err != nil {
		return errors.Wrap(err, "failed to reload chat")
	}
	if current == nil {
		return errors.Wrapf(store.ErrItemNotFound, "chat %d", chat.ID)
	}
	chat.Summary = current.Summary
	return nil
}

// candidateText composes the summary text for the chat's current item set.
// When composition overflows and newItem is the item that was just added,
// the item is discarded, the chat notified, and the text recomputed from the
// remaining items.
func (r *Reconciler) candidateText(ctx context.Context, chat *store.Chat, newItem *store.PinnedItem) (string, error) {
	text, err := r.composeForChat(ctx, chat)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrTextTooLong) || newItem == nil {
		return "", err
	}

	// The freshly added item pushed the summary over the limit: roll it back.
	if err := r.store.DeletePinnedItem(ctx, &store.DeletePinnedItem{ID: &newItem.ID}); err != nil {
		return "", errors.Wrap(err, "failed to roll back overflowing item")
	}
	slog.Info("rolled back overflowing pinned item",
		"chat_id", chat.TelegramID, "item_id", newItem.ID)
	r.notify(ctx, chat.TelegramID, overflowNotice)

	// Composition succeeded before the addition, so it is expected to
	// succeed again now.
	text, err = r.composeForChat(ctx, chat)
	if err != nil {
		return "", errors.Wrapf(ErrFatalInconsistency, "summary still invalid after rollback: %v", err)
	}
	return text, nil
}

func (r *Reconciler) composeForChat(ctx context.Context, chat *store.Chat) (string, error) {
	items, err := r.store.ListPinnedItems(ctx, &store.FindPinnedItem{ChatID: &chat.ID})
	if err != nil {
		return "", errors.Wrap(err, "failed to list pinned items")
	}
	return Compose(ctx, chat.TelegramID, items, r.gateway.ResolveMemberName)
}

// tryPin pins the summary message. Missing rights are not a run failure: the
// chat is told to grant them and the summary stays unpinned until a later
// reconciliation retries.
func (r *Reconciler) tryPin(ctx context.Context, chatID int64, messageID int) (bool, error) {
	err := r.gateway.PinMessage(ctx, chatID, messageID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrPermissionDenied) {
		slog.Info("missing rights to pin summary message", "chat_id", chatID)
		r.notify(ctx, chatID, pinRightsNotice)
		return false, nil
	}
	return false, errors.Wrap(err, "failed to pin summary message")
}

// repairLostSummary handles an edit target that was deleted externally: the
// persisted summary state is cleared so the next run recreates the message
// from scratch, and the run itself fails loudly.
func (r *Reconciler) repairLostSummary(ctx context.Context, chat *store.Chat) error {
	updated, err := r.store.UpdateChat(ctx, &store.UpdateChat{
		ID:      chat.ID,
		Summary: &store.ChatSummary{},
	})
	if err != nil {
		return errors.Wrap(err, "failed to clear summary state")
	}
	chat.Summary = updated.Summary
	slog.Warn("summary message deleted externally, cleared state for recreation",
		"chat_id", chat.TelegramID)
	return errors.Wrap(ErrFatalInconsistency, "summary message deleted externally")
}

func (r *Reconciler) notify(ctx context.Context, chatID int64, text string) {
	if _, err := r.gateway.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("failed to notify chat", "chat_id", chatID, "error", err)
	}
}
