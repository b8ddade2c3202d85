package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexSenderLockerSerializesOneSender(t *testing.T) {
	locker := NewMutexSenderLocker()

	var inTurn, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.AcquireTurnLease(context.Background(), "27820001111")
			assert.NoError(t, err)
			if atomic.AddInt32(&inTurn, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			atomic.AddInt32(&inTurn, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestMutexSenderLockerEvictsIdleSenders(t *testing.T) {
	locker := NewMutexSenderLocker()

	for i := 0; i < 1000; i++ {
		release, err := locker.AcquireTurnLease(context.Background(), fmt.Sprintf("278200%05d", i))
		require.NoError(t, err)
		release()
	}

	locker.mu.Lock()
	remaining := len(locker.locks)
	locker.mu.Unlock()
	assert.Zero(t, remaining, "senders with no turn in flight must not be retained")
}
