package httpapi

import (
	"time"

	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"
)

// Request/Response DTOs
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Mobile   string `json:"mobile" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type ReviewRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
}

// CreateListingRequest takes either close_time or duration_hours, the latter
// capped at one year. Money fields are pointers so only a missing value fails
// binding; zero and negative amounts are left to the listing rules.
type CreateListingRequest struct {
	Title         string        `json:"title" binding:"required"`
	Description   string        `json:"description"`
	ImageURL      string        `json:"image_url"`
	BasePrice     *money.Amount `json:"base_price" binding:"required"`
	CloseTime     *time.Time    `json:"close_time"`
	DurationHours int           `json:"duration_hours" binding:"omitempty,min=1,max=8760"`
}

type PlaceBidRequest struct {
	Amount *money.Amount `json:"amount" binding:"required"`
}

// ListingResponse adds the time left for bidding to a listing
type ListingResponse struct {
	*listing.Listing
	TimeRemainingSeconds int64 `json:"time_remaining_seconds"`
}

func newListingResponse(l *listing.Listing, now time.Time) ListingResponse {
	return ListingResponse{
		Listing:              l,
		TimeRemainingSeconds: int64(l.TimeRemaining(now).Seconds()),
	}
}
