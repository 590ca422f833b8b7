package shared

import (
	"errors"
	"fmt"

	"heritage-auction-service/internal/domain/money"
)

// ErrNotFound is matched by every "unknown id" error below.
var ErrNotFound = errors.New("not found")

// Domain-specific errors
var (
	// Lookup errors
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)

	// Access gate denials
	ErrUnauthorized    = errors.New("account role is not permitted to perform this action")
	ErrPendingApproval = errors.New("account is pending admin approval")
	ErrAccountRejected = errors.New("account registration was rejected")

	// Account errors
	ErrUsernameTaken      = errors.New("username already exists")
	ErrAlreadyReviewed    = errors.New("account has already been reviewed")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Listing errors
	ErrInvalidSpec   = errors.New("invalid listing specification")
	ErrAuctionClosed = errors.New("auction is closed")

	// Bid errors
	ErrBidTooLow = errors.New("bid amount must be higher than current highest bid")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidAmount  = money.ErrInvalidAmount

	// Storage errors
	ErrStorageFailure = errors.New("storage failure")
	ErrStaleListing   = errors.New("listing changed concurrently")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrListingIDRequired   = errors.New("listing_id is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)

// BidTooLowError reports a rejected bid together with the highest bid it
// failed to beat. It matches ErrBidTooLow via errors.Is.
type BidTooLowError struct {
	Amount         money.Amount
	CurrentHighest money.Amount
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: offered %s, current highest is %s",
		ErrBidTooLow, e.Amount, e.CurrentHighest)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// StorageError wraps an adapter fault so callers can match ErrStorageFailure
// while keeping the underlying cause reachable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
