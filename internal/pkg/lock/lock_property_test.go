package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSerializedUpdatesProperty: concurrent read-modify-write under one chat's lock
// matches sequential execution.
func TestSerializedUpdatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatID := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "chatID")
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		deltas := rapid.SliceOfN(rapid.IntRange(-50, 50), numOps, numOps).Draw(t, "deltas")

		cl := NewChatLock()
		counter, want := 0, 0
		for _, d := range deltas {
			want += d
		}

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(d int) {
				defer wg.Done()
				if err := cl.LockContext(context.Background(), chatID); err != nil {
					return
				}
				counter += d
				cl.Unlock(chatID)
			}(d)
		}
		wg.Wait()

		if counter != want {
			t.Fatalf("counter %d, want %d", counter, want)
		}
		if cl.Len() != 0 {
			t.Fatalf("expected no lock entries after release, got %d", cl.Len())
		}
	})
}

// TestIndependentChatsProperty: each chat's updates are serialized independently.
func TestIndependentChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numChats := rapid.IntRange(2, 8).Draw(t, "numChats")
		opsPerChat := rapid.IntRange(2, 15).Draw(t, "opsPerChat")

		cl := NewChatLock()
		counts := make([]int, numChats)

		var wg sync.WaitGroup
		wg.Add(numChats * opsPerChat)
		for c := range numChats {
			for range opsPerChat {
				go func(c int) {
					defer wg.Done()
					cl.Lock(int64(c))
					defer cl.Unlock(int64(c))
					counts[c]++
				}(c)
			}
		}
		wg.Wait()

		for c, n := range counts {
			if n != opsPerChat {
				t.Fatalf("chat %d: %d updates, want %d", c, n, opsPerChat)
			}
		}
	})
}

// TestHeldChatBlocksOnlyItselfProperty: while a chat is held, waiting on it times out
// and waiting on any other chat succeeds at once.
func TestHeldChatBlocksOnlyItselfProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		held := rapid.Int64().Draw(t, "held")
		other := rapid.Int64().Filter(func(v int64) bool { return v != held }).Draw(t, "other")
		waiters := rapid.IntRange(1, 5).Draw(t, "waiters")

		cl := NewChatLock()
		cl.Lock(held)

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(waiters)
		for range waiters {
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
				defer cancel()
				if cl.LockContext(ctx, held) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		if wins.Load() != 0 {
			t.Fatalf("acquired a held chat %d times", wins.Load())
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cl.LockContext(ctx, other); err != nil {
			t.Fatalf("other chat blocked: %v", err)
		}
		cl.Unlock(other)
		cl.Unlock(held)
	})
}

func TestLockContext_Timeout(t *testing.T) {
	cl := NewChatLock()
	cl.Lock(42)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := cl.LockContext(ctx, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	cl.Unlock(42)

	// the abandoned waiter hands the lock back
	require.Eventually(t, func() bool { return cl.Len() == 0 }, time.Second, 5*time.Millisecond)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, cl.LockContext(ctx2, 42))
	cl.Unlock(42)
	assert.Equal(t, 0, cl.Len())
}

func TestUnlockUnknownChat(t *testing.T) {
	cl := NewChatLock()
	assert.NotPanics(t, func() { cl.Unlock(99) })
}
