package app

import (
	"context"
	"errors"
	"fmt"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxAppendAttempts bounds how often a bid is re-evaluated after losing an
// append race to another process sharing the store.
const maxAppendAttempts = 5

// AuctionEngine accepts or rejects bids and exposes the ledger
type AuctionEngine struct {
	listingRepo outbound.ListingRepository
	ledgerRepo  outbound.LedgerRepository
	gate        *AccessGate
	locks       *ListingLocks
	broadcaster outbound.Broadcaster
	now         Clock
	logger      zerolog.Logger
}

type AuctionEngineParams struct {
	ListingRepo outbound.ListingRepository
	LedgerRepo  outbound.LedgerRepository
	Gate        *AccessGate
	Locks       *ListingLocks
	Broadcaster outbound.Broadcaster
	Clock       Clock
	Logger      zerolog.Logger
}

// NewAuctionEngine creates a new auction engine. Locks must be the same
// instance the listing registry uses.
func NewAuctionEngine(params AuctionEngineParams) *AuctionEngine {
	locks := params.Locks
	if locks == nil {
		locks = NewListingLocks()
	}
	return &AuctionEngine{
		listingRepo: params.ListingRepo,
		ledgerRepo:  params.LedgerRepo,
		gate:        params.Gate,
		locks:       locks,
		broadcaster: params.Broadcaster,
		now:         clockOrDefault(params.Clock),
		logger:      params.Logger.With().Str("component", "auction_engine").Logger(),
	}
}

// PlaceBid runs the acceptance rules for one bid under the listing's
// exclusive section. Rules are checked in order: listing exists, listing
// open, bidder allowed, amount above the current highest.
func (e *AuctionEngine) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	e.logger.Debug().
		Str("listing_id", req.ListingID.String()).
		Str("account_id", req.AccountID.String()).
		Str("amount", req.Amount.String()).
		Msg("Attempting to place bid")

	release, err := e.locks.Acquire(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	defer release()

	var bidder *account.Account
	for attempt := 1; ; attempt++ {
		l, err := e.listingRepo.GetByID(ctx, req.ListingID)
		if err != nil {
			return nil, err
		}

		now := e.now()
		if !l.AcceptsBidsAt(now) {
			e.logger.Warn().
				Str("listing_id", l.ID.String()).
				Str("status", string(l.Status)).
				Time("close_time", l.CloseTime).
				Msg("Listing not accepting bids")
			return nil, shared.ErrAuctionClosed
		}

		if bidder == nil {
			bidder, err = e.gate.AuthorizeAccount(ctx, req.AccountID, account.ActionSubmitBid)
			if err != nil {
				return nil, err
			}
		}

		if req.Amount <= l.CurrentHighest {
			e.logger.Warn().
				Str("listing_id", l.ID.String()).
				Str("current_highest", l.CurrentHighest.String()).
				Str("amount", req.Amount.String()).
				Msg("Bid amount too low")
			return nil, &shared.BidTooLowError{Amount: req.Amount, CurrentHighest: l.CurrentHighest}
		}

		newBid := bid.New(l.ID, bidder.ID, bidder.Username, req.Amount, l.BidCount+1, l.NextBidTime(now))
		err = e.ledgerRepo.Append(ctx, newBid, l.CurrentHighest)
		if err == nil {
			e.logger.Info().
				Str("bid_id", newBid.ID.String()).
				Str("listing_id", l.ID.String()).
				Str("bidder_id", bidder.ID.String()).
				Str("amount", newBid.Amount.String()).
				Int64("sequence", newBid.Sequence).
				Msg("Bid accepted")
			e.publishBid(ctx, newBid)
			return newBid, nil
		}

		if !errors.Is(err, shared.ErrStaleListing) {
			e.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to append bid")
			return nil, err
		}
		if attempt >= maxAppendAttempts {
			return nil, fmt.Errorf("%w: gave up after %d attempts: %w", shared.ErrStorageFailure, attempt, err)
		}
		e.logger.Debug().Str("listing_id", l.ID.String()).Int("attempt", attempt).Msg("Listing changed concurrently, re-evaluating bid")
	}
}

func (e *AuctionEngine) publishBid(ctx context.Context, b *bid.Bid) {
	if e.broadcaster == nil {
		return
	}
	event := outbound.Event{
		Type:      outbound.EventTypeBidPlaced,
		ListingID: b.ListingID,
		Data: map[string]interface{}{
			"bid_id":          b.ID,
			"bidder_id":       b.BidderID,
			"bidder_username": b.BidderUsername,
			"amount":          b.Amount,
			"sequence":        b.Sequence,
			"placed_at":       b.PlacedAt,
		},
		Timestamp: b.PlacedAt.Unix(),
	}
	if err := e.broadcaster.Publish(ctx, b.ListingID, event); err != nil {
		e.logger.Error().Err(err).Str("bid_id", b.ID.String()).Msg("Failed to broadcast bid event")
	}
}

// GetBids returns a listing's ledger in acceptance order
func (e *AuctionEngine) GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := e.listingRepo.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return e.ledgerRepo.History(ctx, listingID)
}

// GetBidsByBidder returns every bid an account has placed, oldest first
func (e *AuctionEngine) GetBidsByBidder(ctx context.Context, accountID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := e.gate.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return e.ledgerRepo.ByBidder(ctx, accountID)
}

// Snapshot returns the listing together with its ledger. Both are read inside
// the listing's exclusive section so the last bid matches CurrentHighest.
func (e *AuctionEngine) Snapshot(ctx context.Context, listingID uuid.UUID) (*listing.Listing, []*bid.Bid, error) {
	release, err := e.locks.Acquire(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	l, err := e.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	bids, err := e.ledgerRepo.History(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	return l, bids, nil
}
