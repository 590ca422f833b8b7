package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultPageSize         = 10
	maxPageSize             = 100
	defaultSweepConcurrency = 8
)

// ListingRegistry owns listing lifecycle: creation, lookup, closing and the
// expiry sweep. It never moves a listing's current highest; only the ledger
// append does.
type ListingRegistry struct {
	listingRepo      outbound.ListingRepository
	ledgerRepo       outbound.LedgerRepository
	gate             *AccessGate
	locks            *ListingLocks
	broadcaster      outbound.Broadcaster
	sweepConcurrency int
	now              Clock
	logger           zerolog.Logger
}

type ListingRegistryParams struct {
	ListingRepo      outbound.ListingRepository
	LedgerRepo       outbound.LedgerRepository
	Gate             *AccessGate
	Locks            *ListingLocks
	Broadcaster      outbound.Broadcaster
	SweepConcurrency int
	Clock            Clock
	Logger           zerolog.Logger
}

// NewListingRegistry creates a new listing registry
func NewListingRegistry(params ListingRegistryParams) *ListingRegistry {
	concurrency := params.SweepConcurrency
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	locks := params.Locks
	if locks == nil {
		locks = NewListingLocks()
	}
	return &ListingRegistry{
		listingRepo:      params.ListingRepo,
		ledgerRepo:       params.LedgerRepo,
		gate:             params.Gate,
		locks:            locks,
		broadcaster:      params.Broadcaster,
		sweepConcurrency: concurrency,
		now:              clockOrDefault(params.Clock),
		logger:           params.Logger.With().Str("component", "listing_registry").Logger(),
	}
}

// CreateListing validates and stores a new active listing
func (r *ListingRegistry) CreateListing(ctx context.Context, req inbound.CreateListingRequest) (*listing.Listing, error) {
	if _, err := r.gate.AuthorizeAccount(ctx, req.ActorID, account.ActionCreateListing); err != nil {
		return nil, err
	}

	now := r.now()
	closeTime, err := validateListingRequest(req, now)
	if err != nil {
		r.logger.Warn().Err(err).Str("actor_id", req.ActorID.String()).Msg("Invalid listing request")
		return nil, err
	}

	l := listing.New(strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), strings.TrimSpace(req.ImageURL),
		req.BasePrice, closeTime, req.ActorID, now)

	if err := r.listingRepo.Create(ctx, l); err != nil {
		r.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to save listing")
		return nil, err
	}

	r.logger.Info().
		Str("listing_id", l.ID.String()).
		Str("title", l.Title).
		Str("base_price", l.BasePrice.String()).
		Time("close_time", l.CloseTime).
		Msg("Listing created")

	r.publish(ctx, outbound.CatalogChannel, outbound.Event{
		Type:      outbound.EventTypeListingCreated,
		ListingID: l.ID,
		Data: map[string]interface{}{
			"title":      l.Title,
			"base_price": l.BasePrice,
			"close_time": l.CloseTime,
		},
		Timestamp: now.Unix(),
	})

	return l, nil
}

func validateListingRequest(req inbound.CreateListingRequest, now time.Time) (time.Time, error) {
	if strings.TrimSpace(req.Title) == "" {
		return time.Time{}, fmt.Errorf("%w: title is required", shared.ErrInvalidSpec)
	}
	if !req.BasePrice.IsPositive() {
		return time.Time{}, fmt.Errorf("%w: base price must be greater than 0", shared.ErrInvalidSpec)
	}

	var closeTime time.Time
	switch {
	case req.CloseTime != nil && req.Duration != 0:
		return time.Time{}, fmt.Errorf("%w: give either a close time or a duration, not both", shared.ErrInvalidSpec)
	case req.CloseTime != nil:
		closeTime = *req.CloseTime
	case req.Duration != 0:
		closeTime = now.Add(req.Duration)
	default:
		return time.Time{}, fmt.Errorf("%w: close time is required", shared.ErrInvalidSpec)
	}

	if !closeTime.After(now) {
		return time.Time{}, fmt.Errorf("%w: close time must be in the future", shared.ErrInvalidSpec)
	}
	return closeTime, nil
}

// GetListing retrieves a listing by ID
func (r *ListingRegistry) GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	return r.listingRepo.GetByID(ctx, listingID)
}

// ListListings retrieves a page of listings, newest first
func (r *ListingRegistry) ListListings(ctx context.Context, req inbound.ListListingsRequest) ([]*listing.Listing, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	return r.listingRepo.List(ctx, req.Status, req.Page, req.PageSize)
}

// CloseListing lets an admin close a listing before its close time
func (r *ListingRegistry) CloseListing(ctx context.Context, actorID, listingID uuid.UUID) (*listing.Listing, error) {
	if _, err := r.gate.AuthorizeAccount(ctx, actorID, account.ActionCloseListing); err != nil {
		return nil, err
	}
	return r.Close(ctx, listingID)
}

// Close moves an active listing to closed. Closing a closed listing returns
// it unchanged and publishes nothing.
func (r *ListingRegistry) Close(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	l, _, err := r.closeListing(ctx, listingID, r.now())
	return l, err
}

// AdvanceTime closes every active listing whose close time is at or before
// now. It returns one result per listing this call actually closed.
func (r *ListingRegistry) AdvanceTime(ctx context.Context, now time.Time) ([]*shared.ListingCloseResult, error) {
	expired, err := r.listingRepo.ListExpired(ctx, now)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list expired listings")
		return nil, err
	}
	if len(expired) == 0 {
		return []*shared.ListingCloseResult{}, nil
	}

	r.logger.Debug().Int("count", len(expired)).Time("now", now).Msg("Closing expired listings")

	p := pool.NewWithResults[*shared.ListingCloseResult]().
		WithContext(ctx).
		WithMaxGoroutines(r.sweepConcurrency)

	for _, l := range expired {
		listingID := l.ID
		p.Go(func(ctx context.Context) (*shared.ListingCloseResult, error) {
			_, result, err := r.closeListing(ctx, listingID, now)
			if err != nil {
				r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to close expired listing")
				return nil, err
			}
			return result, nil
		})
	}

	results, err := p.Wait()
	closed := make([]*shared.ListingCloseResult, 0, len(results))
	for _, result := range results {
		if result != nil {
			closed = append(closed, result)
		}
	}

	r.logger.Info().Int("closed", len(closed)).Int("expired", len(expired)).Msg("Expiry sweep finished")
	return closed, err
}

// closeListing returns a nil result when the listing was already closed
func (r *ListingRegistry) closeListing(ctx context.Context, listingID uuid.UUID, now time.Time) (*listing.Listing, *shared.ListingCloseResult, error) {
	release, err := r.locks.Acquire(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	l, err := r.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if l.IsClosed() {
		r.logger.Debug().Str("listing_id", listingID.String()).Msg("Listing already closed")
		return l, nil, nil
	}

	if err := r.listingRepo.MarkClosed(ctx, listingID, now); err != nil {
		r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to mark listing closed")
		return nil, nil, err
	}
	l.Close(now)

	history, err := r.ledgerRepo.History(ctx, listingID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to read ledger for closed listing")
		return nil, nil, err
	}

	result := &shared.ListingCloseResult{
		ListingID:  listingID,
		FinalPrice: l.CurrentHighest,
		BidCount:   int64(len(history)),
		Status:     string(l.Status),
	}
	data := map[string]interface{}{
		"status":      l.Status,
		"final_price": l.CurrentHighest,
		"bid_count":   len(history),
		"closed_at":   now,
	}
	if len(history) > 0 {
		winner := history[len(history)-1]
		result.WinnerID = &winner.BidderID
		result.FinalPrice = winner.Amount
		data["winner_id"] = winner.BidderID
		data["winner_username"] = winner.BidderUsername
		data["final_price"] = winner.Amount

		r.logger.Info().
			Str("listing_id", listingID.String()).
			Str("winner_id", winner.BidderID.String()).
			Str("final_price", winner.Amount.String()).
			Msg("Listing closed with winner")
	} else {
		r.logger.Info().Str("listing_id", listingID.String()).Msg("Listing closed with no bids")
	}

	r.publish(ctx, l.ID, outbound.Event{
		Type:      outbound.EventTypeListingClosed,
		ListingID: listingID,
		Data:      data,
		Timestamp: now.Unix(),
	})

	return l, result, nil
}

func (r *ListingRegistry) publish(ctx context.Context, channel uuid.UUID, event outbound.Event) {
	if r.broadcaster == nil {
		return
	}
	if err := r.broadcaster.Publish(ctx, channel, event); err != nil {
		r.logger.Error().Err(err).
			Str("listing_id", event.ListingID.String()).
			Str("event_type", string(event.Type)).
			Msg("Failed to broadcast listing event")
	}
}
