package memory

import (
	"context"
	"sort"
	"time"

	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ListingRepository implements the listing repository interface
type ListingRepository struct {
	store *Store
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("create listing"); err != nil {
		return err
	}
	s.listings[l.ID] = l.Clone()
	s.listingOrder = append(s.listingOrder, l.ID)
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get listing"); err != nil {
		return nil, err
	}
	l, ok := s.listings[id]
	if !ok {
		return nil, shared.ErrListingNotFound
	}
	return l.Clone(), nil
}

// List returns the newest listings first
func (r *ListingRepository) List(ctx context.Context, status *listing.Status, page, pageSize int) ([]*listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("list listings"); err != nil {
		return nil, err
	}

	matched := make([]*listing.Listing, 0)
	for i := len(s.listingOrder) - 1; i >= 0; i-- {
		l := s.listings[s.listingOrder[i]]
		if status != nil && l.Status != *status {
			continue
		}
		matched = append(matched, l)
	}

	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []*listing.Listing{}, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]*listing.Listing, 0, end-offset)
	for _, l := range matched[offset:end] {
		result = append(result, l.Clone())
	}
	return result, nil
}

// ListExpired returns active listings past their close time, earliest first
func (r *ListingRepository) ListExpired(ctx context.Context, now time.Time) ([]*listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("list expired listings"); err != nil {
		return nil, err
	}
	result := make([]*listing.Listing, 0)
	for _, id := range s.listingOrder {
		l := s.listings[id]
		if !l.IsClosed() && l.Expired(now) {
			result = append(result, l.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CloseTime.Before(result[j].CloseTime)
	})
	return result, nil
}

func (r *ListingRepository) MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("close listing"); err != nil {
		return err
	}
	l, ok := s.listings[id]
	if !ok {
		return shared.ErrListingNotFound
	}
	l.Close(closedAt)
	return nil
}
