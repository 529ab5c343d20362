package summary

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLockerMutualExclusion(t *testing.T) {
	locker := newChatLocker()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for n := 0; n < 50; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker.Lock(1)
			defer locker.Unlock(1)

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "two holders of the same chat lock")
}

func TestChatLockerIndependentChats(t *testing.T) {
	locker := newChatLocker()
	locker.Lock(1)
	defer locker.Unlock(1)

	done := make(chan struct{})
	go func() {
		locker.Lock(2)
		locker.Unlock(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different chat blocked")
	}
}

func TestChatLockerReleasesEntries(t *testing.T) {
	locker := newChatLocker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker.Lock(int64(i))
			locker.Unlock(int64(i))
		}()
	}
	wg.Wait()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	require.Empty(t, locker.locks, "lock entries must not leak")
}
