package lock

import (
	"context"
	"sync"
	"time"

	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Keyed is an in-process domainLock.Locker: one writer per key, waiting
// callers queue until the holder unlocks. A waiter gives up with
// domainLock.ErrLockHeld once its context is done or ttl has passed, the
// same point at which a Redis lock would have expired.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

func (k *Keyed) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ttl)
		defer cancel()
	}

	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, domainLock.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *Keyed) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

var _ domainLock.Locker = (*Keyed)(nil)
