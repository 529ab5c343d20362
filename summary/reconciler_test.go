package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiySurkov/multipinbot/store"
)

// mockItemStore is an in-memory ItemStore for reconciler tests.
type mockItemStore struct {
	mu          sync.Mutex
	items       []*store.PinnedItem
	chats       map[int32]*store.Chat
	chatUpdates int
}

func newMockItemStore(chat *store.Chat, items ...*store.PinnedItem) *mockItemStore {
	return &mockItemStore{
		items: items,
		chats: map[int32]*store.Chat{chat.ID: chat},
	}
}

func (m *mockItemStore) GetChat(_ context.Context, find *store.FindChat) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chat := range m.chats {
		if find.ID != nil && chat.ID != *find.ID {
			continue
		}
		if find.TelegramID != nil && chat.TelegramID != *find.TelegramID {
			continue
		}
		copied := *chat
		return &copied, nil
	}
	return nil, nil
}

// loadChat models a handler loading its own chat row from the database.
func (m *mockItemStore) loadChat(t *testing.T, id int32) *store.Chat {
	t.Helper()
	chat, err := m.GetChat(context.Background(), &store.FindChat{ID: &id})
	require.NoError(t, err)
	require.NotNil(t, chat)
	return chat
}

func (m *mockItemStore) ListPinnedItems(_ context.Context, find *store.FindPinnedItem) ([]*store.PinnedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*store.PinnedItem
	for _, item := range m.items {
		if find.ChatID != nil && item.ChatID != *find.ChatID {
			continue
		}
		if find.ID != nil && item.ID != *find.ID {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

func (m *mockItemStore) DeletePinnedItem(_ context.Context, delete *store.DeletePinnedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if delete.ID != nil && item.ID == *delete.ID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return store.ErrItemNotFound
}

func (m *mockItemStore) UpdateChat(_ context.Context, update *store.UpdateChat) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[update.ID]
	if !ok {
		return nil, errors.New("chat not found")
	}
	if update.Title != nil {
		chat.Title = *update.Title
	}
	if update.Summary != nil {
		chat.Summary = *update.Summary
	}
	m.chatUpdates++
	copied := *chat
	return &copied, nil
}

// mockGateway records gateway calls and returns scripted failures.
type mockGateway struct {
	mu            sync.Mutex
	nextMessageID int
	sentTexts     []string
	editTexts     []string
	pinCalls      int
	sendErr       error
	editErr       error
	pinErr        error
	resolveErr    error
}

func newMockGateway() *mockGateway {
	return &mockGateway{nextMessageID: 100}
}

func (g *mockGateway) SendMessage(_ context.Context, _ int64, text string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.nextMessageID++
	g.sentTexts = append(g.sentTexts, text)
	return g.nextMessageID, nil
}

func (g *mockGateway) EditMessageText(_ context.Context, _ int64, _ int, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return g.editErr
	}
	g.editTexts = append(g.editTexts, text)
	return nil
}

func (g *mockGateway) PinMessage(_ context.Context, _ int64, _ int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return g.pinErr
	}
	g.pinCalls++
	return nil
}

func (g *mockGateway) ResolveMemberName(_ context.Context, _ int64, userID int64) (string, error) {
	if g.resolveErr != nil {
		return "", g.resolveErr
	}
	return fmt.Sprintf("@user%d", userID), nil
}

func (g *mockGateway) sends() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sentTexts)
}

func testChat() *store.Chat {
	return &store.Chat{ID: 1, TelegramID: -1001, Title: "test group"}
}

func testItem(id int32, text string) *store.PinnedItem {
	return &store.PinnedItem{
		ID: id, ChatID: 1, AuthorID: 42,
		TelegramMessageID: int(id) + 1000,
		SentTs:            time.Now().Unix() + int64(id),
		Text:              text,
	}
}

func TestReconcileCreatesSummary(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	err := reconciler.Reconcile(context.Background(), chat, item)
	require.NoError(t, err)

	require.Len(t, gateway.sentTexts, 1)
	assert.Contains(t, gateway.sentTexts[0], "hello")
	assert.Equal(t, 1, gateway.pinCalls)

	require.NotNil(t, chat.Summary.MessageID)
	assert.Equal(t, 101, *chat.Summary.MessageID)
	require.NotNil(t, chat.Summary.Text)
	assert.Equal(t, gateway.sentTexts[0], *chat.Summary.Text)
	assert.True(t, chat.Summary.Pinned)
	assert.Equal(t, 1, mockStore.chatUpdates)
}

func TestReconcileEmptyItemSet(t *testing.T) {
	chat := testChat()
	mockStore := newMockItemStore(chat)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	err := reconciler.Reconcile(context.Background(), chat, nil)
	require.NoError(t, err)

	require.Len(t, gateway.sentTexts, 1)
	assert.Equal(t, EmptySummaryText, gateway.sentTexts[0])
}

func TestReconcilePinPermissionDenied(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	gateway.pinErr = errors.Wrap(ErrPermissionDenied, "not enough rights to pin a message")
	reconciler := NewReconciler(mockStore, gateway)

	err := reconciler.Reconcile(context.Background(), chat, item)
	require.NoError(t, err, "missing pin rights must not fail the run")

	// The summary itself plus the rights notification.
	require.Len(t, gateway.sentTexts, 2)
	assert.Equal(t, pinRightsNotice, gateway.sentTexts[1])

	require.NotNil(t, chat.Summary.MessageID)
	assert.False(t, chat.Summary.Pinned)
}

func TestReconcilePinRetryAfterRightsGranted(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	gateway.pinErr = errors.Wrap(ErrPermissionDenied, "not enough rights to pin a message")
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), chat, item))
	require.False(t, chat.Summary.Pinned)
	summaryText := *chat.Summary.Text

	// Rights granted: the next run pins without re-sending or editing.
	gateway.pinErr = nil
	require.NoError(t, reconciler.Reconcile(context.Background(), chat, nil))

	assert.True(t, chat.Summary.Pinned)
	assert.Equal(t, 1, gateway.pinCalls)
	assert.Equal(t, 2, gateway.sends(), "no new summary message")
	assert.Empty(t, gateway.editTexts, "text unchanged, no edit")
	assert.Equal(t, summaryText, *chat.Summary.Text)
}

func TestReconcileIdempotent(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), chat, item))
	sends, pins := gateway.sends(), gateway.pinCalls

	// No item-set change: the second run must issue zero send/edit/pin calls.
	require.NoError(t, reconciler.Reconcile(context.Background(), chat, nil))

	assert.Equal(t, sends, gateway.sends())
	assert.Equal(t, pins, gateway.pinCalls)
	assert.Empty(t, gateway.editTexts)
}

func TestReconcileEditsOnItemRemoval(t *testing.T) {
	chat := testChat()
	itemA := testItem(1, "entry A")
	itemB := testItem(2, "entry B")
	mockStore := newMockItemStore(chat, itemA, itemB)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), chat, itemB))

	// Unpin B: exactly one edit, and only A's entry remains.
	require.NoError(t, mockStore.DeletePinnedItem(context.Background(), &store.DeletePinnedItem{ID: &itemB.ID}))
	require.NoError(t, reconciler.Reconcile(context.Background(), chat, nil))

	require.Len(t, gateway.editTexts, 1)
	assert.Contains(t, gateway.editTexts[0], "entry A")
	assert.NotContains(t, gateway.editTexts[0], "entry B")
	assert.Equal(t, gateway.editTexts[0], *chat.Summary.Text)
}

func TestReconcileOverflowRollback(t *testing.T) {
	chat := testChat()
	existing := testItem(1, strings.Repeat("a", 4000))
	mockStore := newMockItemStore(chat, existing)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), chat, existing))
	baseline := *chat.Summary.Text
	baselineSends := gateway.sends()

	// Adding one more item pushes the composed text over the limit.
	overflowing := testItem(2, strings.Repeat("b", 500))
	mockStore.mu.Lock()
	mockStore.items = append(mockStore.items, overflowing)
	mockStore.mu.Unlock()

	err := reconciler.Reconcile(context.Background(), chat, overflowing)
	require.NoError(t, err, "overflow is recovered, not surfaced")

	// The offending item is gone from the store.
	remaining, err := mockStore.ListPinnedItems(context.Background(), &store.FindPinnedItem{ChatID: &chat.ID})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, existing.ID, remaining[0].ID)

	// The chat was notified and the summary text is unchanged.
	require.Equal(t, baselineSends+1, gateway.sends())
	assert.Equal(t, overflowNotice, gateway.sentTexts[len(gateway.sentTexts)-1])
	assert.Empty(t, gateway.editTexts)
	assert.Equal(t, baseline, *chat.Summary.Text)
}

func TestReconcileEditTargetDeletedExternally(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), chat, item))

	// Someone deleted the summary message; the next edit fails.
	mockStore.mu.Lock()
	mockStore.items = append(mockStore.items, testItem(2, "more"))
	mockStore.mu.Unlock()
	gateway.editErr = errors.Wrap(ErrMessageNotFound, "message to edit not found")

	err := reconciler.Reconcile(context.Background(), chat, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalInconsistency)

	// State is cleared so the next run recreates the summary from scratch.
	assert.Nil(t, chat.Summary.MessageID)
	assert.Nil(t, chat.Summary.Text)
	assert.False(t, chat.Summary.Pinned)

	gateway.editErr = nil
	require.NoError(t, reconciler.Reconcile(context.Background(), chat, nil))
	require.NotNil(t, chat.Summary.MessageID)
	assert.Contains(t, *chat.Summary.Text, "more")
}

func TestReconcileAuthorUnresolvedFailsRun(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	gateway.resolveErr = errors.Wrap(ErrMemberNotFound, "user not found")
	reconciler := NewReconciler(mockStore, gateway)

	err := reconciler.Reconcile(context.Background(), chat, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	// Nothing was sent or persisted.
	assert.Zero(t, gateway.sends())
	assert.Zero(t, mockStore.chatUpdates)
	assert.Nil(t, chat.Summary.MessageID)
}

func TestReconcileInvariantTextIffMessageID(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	check := func() {
		t.Helper()
		assert.Equal(t, chat.Summary.MessageID == nil, chat.Summary.Text == nil)
	}

	check()
	require.NoError(t, reconciler.Reconcile(context.Background(), chat, item))
	check()

	gateway.editErr = errors.Wrap(ErrMessageNotFound, "message to edit not found")
	mockStore.mu.Lock()
	mockStore.items = append(mockStore.items, testItem(2, "more"))
	mockStore.mu.Unlock()
	_ = reconciler.Reconcile(context.Background(), chat, nil)
	check()
}

func TestReconcileConcurrentFirstPin(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	// Two concurrent first-pin events for the same chat must produce exactly
	// one summary message. Each handler loads the chat row on its own before
	// reconciling, so both snapshots start with no summary state.
	var wg sync.WaitGroup
	for n := 0; n < 2; n++ {
		snapshot := mockStore.loadChat(t, chat.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, reconciler.Reconcile(context.Background(), snapshot, nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gateway.sends())
	require.NotNil(t, mockStore.loadChat(t, chat.ID).Summary.MessageID)
}

func TestReconcileStaleSnapshotDoesNotResend(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	// A snapshot loaded before another run created the summary must follow
	// the edit branch, not send a second summary message.
	stale := mockStore.loadChat(t, chat.ID)
	require.Nil(t, stale.Summary.MessageID)

	require.NoError(t, reconciler.Reconcile(context.Background(), mockStore.loadChat(t, chat.ID), item))
	require.Equal(t, 1, gateway.sends())

	require.NoError(t, reconciler.Reconcile(context.Background(), stale, nil))

	assert.Equal(t, 1, gateway.sends(), "stale snapshot must not create a second summary")
	assert.Empty(t, gateway.editTexts, "text unchanged, no edit")
	require.NotNil(t, stale.Summary.MessageID)
}

func TestRestorePinRePinsCurrentSummary(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), mockStore.loadChat(t, chat.ID), item))
	sends, pins := gateway.sends(), gateway.pinCalls

	// Someone pinned another message by hand, replacing the summary. A stale
	// snapshot must still re-pin the current summary message.
	snapshot := testChat()
	require.NoError(t, reconciler.RestorePin(context.Background(), snapshot))

	assert.Equal(t, pins+1, gateway.pinCalls)
	assert.Equal(t, sends, gateway.sends())
	assert.True(t, snapshot.Summary.Pinned)
	require.NotNil(t, snapshot.Summary.MessageID)
}

func TestRestorePinNoSummaryIsNoop(t *testing.T) {
	chat := testChat()
	item := testItem(1, "hello")
	mockStore := newMockItemStore(chat, item)
	gateway := newMockGateway()
	reconciler := NewReconciler(mockStore, gateway)

	require.NoError(t, reconciler.Reconcile(context.Background(), mockStore.loadChat(t, chat.ID), item))

	// The summary message was deleted externally and the state cleared. A
	// snapshot from before the repair must not resurrect the old triplet.
	stale := mockStore.loadChat(t, chat.ID)
	_, err := mockStore.UpdateChat(context.Background(), &store.UpdateChat{
		ID:      chat.ID,
		Summary: &store.ChatSummary{},
	})
	require.NoError(t, err)
	pins, updates := gateway.pinCalls, mockStore.chatUpdates

	require.NoError(t, reconciler.RestorePin(context.Background(), stale))

	assert.Equal(t, pins, gateway.pinCalls)
	assert.Equal(t, updates, mockStore.chatUpdates, "no state written")
	assert.Nil(t, stale.Summary.MessageID)
	assert.Nil(t, stale.Summary.Text)
}
