package shared

import (
	"heritage-auction-service/internal/domain/money"

	"github.com/google/uuid"
)

// ListingCloseResult represents the result of closing a listing
type ListingCloseResult struct {
	ListingID  uuid.UUID
	WinnerID   *uuid.UUID
	FinalPrice money.Amount
	BidCount   int64
	Status     string
}
