package bid

import (
	"time"

	"heritage-auction-service/internal/domain/money"

	"github.com/google/uuid"
)

// Bid is one accepted offer. Bids are owned by the ledger and never change
// after they are appended.
type Bid struct {
	ID             uuid.UUID    `json:"id"`
	ListingID      uuid.UUID    `json:"listing_id"`
	BidderID       uuid.UUID    `json:"bidder_id"`
	BidderUsername string       `json:"bidder_username"`
	Amount         money.Amount `json:"amount"`
	Sequence       int64        `json:"sequence"`
	PlacedAt       time.Time    `json:"placed_at"`
}

// New creates a bid with the given acceptance sequence within its listing
func New(listingID, bidderID uuid.UUID, bidderUsername string, amount money.Amount, sequence int64, placedAt time.Time) *Bid {
	return &Bid{
		ID:             uuid.New(),
		ListingID:      listingID,
		BidderID:       bidderID,
		BidderUsername: bidderUsername,
		Amount:         amount,
		Sequence:       sequence,
		PlacedAt:       placedAt,
	}
}

// Clone returns a copy safe to hand out of a store
func (b *Bid) Clone() *Bid {
	c := *b
	return &c
}
