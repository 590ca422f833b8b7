package shared

import (
	"context"
	"errors"
)

// Error codes reported to transport clients
const (
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
	CodePendingApproval    = "pending_approval"
	CodeAccountRejected    = "account_rejected"
	CodeUsernameTaken      = "username_taken"
	CodeAlreadyReviewed    = "already_reviewed"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidSpec        = "invalid_spec"
	CodeAuctionClosed      = "auction_closed"
	CodeBidTooLow          = "bid_too_low"
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidAmount      = "invalid_amount"
	CodeStorageFailure     = "storage_failure"
	CodeTimeout            = "timeout"
	CodeInternal           = "internal_error"
)

// ErrorCode classifies err into one of the codes above
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrPendingApproval):
		return CodePendingApproval
	case errors.Is(err, ErrAccountRejected):
		return CodeAccountRejected
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrUsernameTaken):
		return CodeUsernameTaken
	case errors.Is(err, ErrAlreadyReviewed):
		return CodeAlreadyReviewed
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrInvalidSpec):
		return CodeInvalidSpec
	case errors.Is(err, ErrAuctionClosed):
		return CodeAuctionClosed
	case errors.Is(err, ErrBidTooLow):
		return CodeBidTooLow
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrMessageTypeRequired),
		errors.Is(err, ErrListingIDRequired),
		errors.Is(err, ErrUnknownMessageType):
		return CodeInvalidRequest
	case errors.Is(err, ErrStorageFailure):
		return CodeStorageFailure
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
