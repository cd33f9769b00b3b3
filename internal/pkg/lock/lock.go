// Package lock provides per-chat locking so that operations on one chat session run one at a time.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// chatMutex wraps a mutex with the number of holders and waiters, so idle
// entries can be dropped.
type chatMutex struct {
	mu   sync.Mutex
	refs int
}

// ChatLock serializes work per chat ID. Chats never block each other.
type ChatLock struct {
	mu    sync.Mutex
	locks map[int64]*chatMutex
}

// NewChatLock creates a new ChatLock instance.
func NewChatLock() *ChatLock {
	return &ChatLock{locks: make(map[int64]*chatMutex)}
}

func (cl *ChatLock) acquire(chatID int64) *chatMutex {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	m, ok := cl.locks[chatID]
	if !ok {
		m = &chatMutex{}
		cl.locks[chatID] = m
	}
	m.refs++
	return m
}

func (cl *ChatLock) release(chatID int64, m *chatMutex) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(cl.locks, chatID)
	}
}

// Lock blocks until the chat's lock is held.
func (cl *ChatLock) Lock(chatID int64) {
	cl.acquire(chatID).mu.Lock()
}

// Unlock releases the chat's lock. It is a no-op for a chat nobody holds or waits on.
func (cl *ChatLock) Unlock(chatID int64) {
	cl.mu.Lock()
	m, ok := cl.locks[chatID]
	cl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	cl.release(chatID, m)
}

// LockContext waits for the chat's lock until ctx is done.
func (cl *ChatLock) LockContext(ctx context.Context, chatID int64) error {
	m := cl.acquire(chatID)

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// the waiter still acquires eventually; hand the lock straight back
		go func() {
			<-done
			m.mu.Unlock()
			cl.release(chatID, m)
		}()
		return fmt.Errorf("%w: chat %d: %w", ErrLockTimeout, chatID, ctx.Err())
	}
}

// Len returns the number of chats with a holder or waiter.
func (cl *ChatLock) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.locks)
}
