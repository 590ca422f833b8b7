package memory

import (
	"context"
	"errors"

	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

var errStoreClosed = errors.New("memory store is closed")

// LedgerRepository implements the ledger repository interface
type LedgerRepository struct {
	store *Store
}

// Append records the bid and advances the listing summary under one lock
func (r *LedgerRepository) Append(ctx context.Context, b *bid.Bid, expectedHighest money.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("append bid"); err != nil {
		return err
	}
	l, ok := s.listings[b.ListingID]
	if !ok {
		return shared.ErrListingNotFound
	}
	if l.IsClosed() || l.CurrentHighest != expectedHighest || b.Sequence != l.BidCount+1 {
		s.logger.Debug().
			Str("listing_id", b.ListingID.String()).
			Str("expected_highest", expectedHighest.String()).
			Str("current_highest", l.CurrentHighest.String()).
			Msg("Stale ledger append rejected")
		return shared.ErrStaleListing
	}

	stored := b.Clone()
	s.ledger[b.ListingID] = append(s.ledger[b.ListingID], stored)
	s.byBidder[b.BidderID] = append(s.byBidder[b.BidderID], stored)
	l.RecordBid(b.Amount, b.PlacedAt)
	return nil
}

func (r *LedgerRepository) History(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("bid history"); err != nil {
		return nil, err
	}
	if _, ok := s.listings[listingID]; !ok {
		return nil, shared.ErrListingNotFound
	}
	return cloneBids(s.ledger[listingID]), nil
}

func (r *LedgerRepository) ByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("bids by bidder"); err != nil {
		return nil, err
	}
	return cloneBids(s.byBidder[bidderID]), nil
}

func cloneBids(bids []*bid.Bid) []*bid.Bid {
	result := make([]*bid.Bid, 0, len(bids))
	for _, b := range bids {
		result = append(result, b.Clone())
	}
	return result
}

// checkOpen must be called with s.mu held
func (s *Store) checkOpen(op string) error {
	if s.closed {
		return shared.StorageError(op, errStoreClosed)
	}
	return nil
}
