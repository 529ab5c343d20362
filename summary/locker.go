package summary

import "sync"

// chatLocker serializes reconciliations per chat. Two runs for the same chat
// must never interleave or the create-vs-edit branch races and the chat ends
// up with two summary messages; runs for different chats proceed in parallel.
type chatLocker struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocker() *chatLocker {
	return &chatLocker{
		locks: make(map[int64]*chatLock),
	}
}

// Lock acquires the lock for the given chat, blocking until any in-flight
// reconciliation for the same chat finishes.
func (l *chatLocker) Lock(chatID int64) {
	l.mu.Lock()
	lock, ok := l.locks[chatID]
	if !ok {
		lock = &chatLock{}
		l.locks[chatID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
}

// Unlock releases the lock for the given chat. Entries are dropped once no
// goroutine holds or waits on them, so the map does not grow with the number
// of chats ever seen.
func (l *chatLocker) Unlock(chatID int64) {
	l.mu.Lock()
	lock := l.locks[chatID]
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, chatID)
	}
	l.mu.Unlock()

	lock.mu.Unlock()
}
