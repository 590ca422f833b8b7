package listing

import (
	"time"

	"heritage-auction-service/internal/domain/money"

	"github.com/google/uuid"
)

// Status represents the lifecycle status of a listing
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Listing represents an item open for bidding
type Listing struct {
	ID             uuid.UUID    `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	ImageURL       string       `json:"image_url,omitempty"`
	BasePrice      money.Amount `json:"base_price"`
	CurrentHighest money.Amount `json:"current_highest"`
	CloseTime      time.Time    `json:"close_time"`
	Status         Status       `json:"status"`
	BidCount       int64        `json:"bid_count"`
	LastBidAt      *time.Time   `json:"last_bid_at,omitempty"`
	CreatedBy      uuid.UUID    `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
}

// New creates an active listing whose current highest starts at the base price
func New(title, description, imageURL string, basePrice money.Amount, closeTime time.Time, createdBy uuid.UUID, now time.Time) *Listing {
	return &Listing{
		ID:             uuid.New(),
		Title:          title,
		Description:    description,
		ImageURL:       imageURL,
		BasePrice:      basePrice,
		CurrentHighest: basePrice,
		CloseTime:      closeTime,
		Status:         StatusActive,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (l *Listing) IsClosed() bool {
	return l.Status == StatusClosed
}

// Expired reports whether the close time has been reached, whatever the status.
func (l *Listing) Expired(now time.Time) bool {
	return !now.Before(l.CloseTime)
}

// AcceptsBidsAt reports whether a bid arriving at now may be considered.
// An expired listing that the sweep has not closed yet still refuses bids.
func (l *Listing) AcceptsBidsAt(now time.Time) bool {
	return l.Status == StatusActive && !l.Expired(now)
}

// TimeRemaining is zero once the listing is closed or expired
func (l *Listing) TimeRemaining(now time.Time) time.Duration {
	if !l.AcceptsBidsAt(now) {
		return 0
	}
	return l.CloseTime.Sub(now)
}

// NextBidTime returns the timestamp for the next accepted bid, never earlier
// than the previous one so ledger timestamps stay non-decreasing.
func (l *Listing) NextBidTime(now time.Time) time.Time {
	if l.LastBidAt != nil && now.Before(*l.LastBidAt) {
		return *l.LastBidAt
	}
	return now
}

// RecordBid advances the derived summary after a bid is accepted
func (l *Listing) RecordBid(amount money.Amount, at time.Time) {
	l.CurrentHighest = amount
	l.BidCount++
	l.LastBidAt = &at
	l.UpdatedAt = at
}

// Close marks the listing closed. It returns false if it was already closed.
func (l *Listing) Close(at time.Time) bool {
	if l.IsClosed() {
		return false
	}
	l.Status = StatusClosed
	l.ClosedAt = &at
	l.UpdatedAt = at
	return true
}

// Clone returns a deep copy
func (l *Listing) Clone() *Listing {
	c := *l
	if l.LastBidAt != nil {
		t := *l.LastBidAt
		c.LastBidAt = &t
	}
	if l.ClosedAt != nil {
		t := *l.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
