package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a lock could not be obtained before the
// context was done.
var ErrLockHeld = errors.New("lock is held by another writer")

// Locker serialises writers on a key. Acquire blocks until the lock is held
// or ctx is done. The returned unlock func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// ListingKey is the lock key guarding a listing's ledger, status and
// payment records.
func ListingKey(listingID string) string {
	return "listing:" + listingID
}
