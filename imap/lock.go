package imap

import "sync"

// mailboxLock serializes access to a session's selected-mailbox state.
// The underlying protocol connection has exactly one selected mailbox at
// a time, so every operation that depends on "currently selected mailbox"
// must hold this lock. Reads share it; mutations take it exclusively.
type mailboxLock struct {
	mu sync.RWMutex
}

// releaseFunc releases an acquired lock. Safe to call more than once.
type releaseFunc func()

// acquireRead takes the lock shared and returns its release. Callers must
// defer the release so it runs on every exit path, including panics.
func (l *mailboxLock) acquireRead() releaseFunc {
	l.mu.RLock()
	var once sync.Once
	return func() { once.Do(l.mu.RUnlock) }
}

// acquireWrite takes the lock exclusively and returns its release.
func (l *mailboxLock) acquireWrite() releaseFunc {
	l.mu.Lock()
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }
}
