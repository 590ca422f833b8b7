package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ListingLocks hands out one exclusive section per listing. Bids, closes and
// the expiry sweep for the same listing serialize here; different listings
// never contend.
type ListingLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*listingLock
}

type listingLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewListingLocks() *ListingLocks {
	return &ListingLocks{locks: make(map[uuid.UUID]*listingLock)}
}

// Acquire blocks until the listing's section is free or ctx is done.
// The returned release func must be called exactly once.
func (l *ListingLocks) Acquire(ctx context.Context, listingID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[listingID]
	if !ok {
		lock = &listingLock{sem: semaphore.NewWeighted(1)}
		l.locks[listingID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.drop(listingID, lock)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.drop(listingID, lock)
		})
	}, nil
}

func (l *ListingLocks) drop(listingID uuid.UUID, lock *listingLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, listingID)
	}
}

// size reports how many listings currently hold or await a section
func (l *ListingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
