package service

import (
	"context"
	"sync"
)

// SenderLocker serializes turns per sender. The conversation log has no
// transactional guard against two simultaneous deliveries for one sender,
// so the handler takes a lease for the duration of the turn.
type SenderLocker interface {
	AcquireTurnLease(ctx context.Context, senderID string) (release func(), err error)
}

// senderLock is one sender's mutex plus the number of turns holding or
// waiting on it. Entries leave the map when the count reaches zero, so the
// map tracks only senders with a turn in flight.
type senderLock struct {
	mu   sync.Mutex
	refs int
}

// MutexSenderLocker is the in-process fallback used when no Redis is
// configured. Sufficient for a single instance; multi-instance deployments
// need the distributed lease.
type MutexSenderLocker struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

func NewMutexSenderLocker() *MutexSenderLocker {
	return &MutexSenderLocker{locks: make(map[string]*senderLock)}
}

func (l *MutexSenderLocker) AcquireTurnLease(_ context.Context, senderID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[senderID]
	if !ok {
		entry = &senderLock{}
		l.locks[senderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, senderID)
		}
		l.mu.Unlock()
	}, nil
}
