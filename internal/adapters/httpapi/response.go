package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"heritage-auction-service/internal/domain/shared"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response. A rejected bid also carries
// the highest bid it failed to beat.
func JSONError(c *gin.Context, status int, code string, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
		"code":    code,
		"error":   err.Error(),
	}

	var tooLow *shared.BidTooLowError
	if errors.As(err, &tooLow) {
		body["current_highest"] = tooLow.CurrentHighest
	}
	c.AbortWithStatusJSON(status, body)
}

// MapErrorToHTTP maps domain/service errors to HTTP status code, error code
// and message
func MapErrorToHTTP(err error) (int, string, string) {
	code := shared.ErrorCode(err)
	switch code {
	case shared.CodeNotFound:
		return http.StatusNotFound, code, "resource not found"
	case shared.CodeInvalidCredentials:
		return http.StatusUnauthorized, code, "invalid credentials"
	case shared.CodeUnauthorized:
		return http.StatusForbidden, code, "action not permitted for this account"
	case shared.CodePendingApproval:
		return http.StatusForbidden, code, "account is pending admin approval"
	case shared.CodeAccountRejected:
		return http.StatusForbidden, code, "account registration was rejected"
	case shared.CodeUsernameTaken:
		return http.StatusConflict, code, "username already exists"
	case shared.CodeAlreadyReviewed:
		return http.StatusConflict, code, "account has already been reviewed"
	case shared.CodeAuctionClosed:
		return http.StatusConflict, code, "auction is closed"
	case shared.CodeBidTooLow:
		return http.StatusConflict, code, "bid amount too low"
	case shared.CodeInvalidSpec:
		return http.StatusBadRequest, code, "invalid listing details"
	case shared.CodeInvalidAmount:
		return http.StatusBadRequest, code, "invalid amount"
	case shared.CodeInvalidRequest:
		return http.StatusBadRequest, code, "invalid request"
	case shared.CodeTimeout:
		return http.StatusServiceUnavailable, code, "request timed out"
	case shared.CodeStorageFailure:
		return http.StatusServiceUnavailable, code, "storage unavailable"
	default:
		return http.StatusInternalServerError, code, "internal server error"
	}
}

// respondError maps err and logs it at a level matching its status
func respondError(c *gin.Context, logger zerolog.Logger, handlerName string, err error) {
	status, code, message := MapErrorToHTTP(err)
	JSONError(c, status, code, err, message)

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("handler", handlerName).Int("status", status).Msg("Request failed")
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, logger zerolog.Logger, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	code := shared.CodeInvalidRequest
	if errors.Is(err, shared.ErrInvalidAmount) {
		code = shared.CodeInvalidAmount
	}
	JSONError(c, http.StatusBadRequest, code, wrappedErr, "invalid request payload")
	logger.Warn().Err(err).Str("handler", handlerName).Msg("Binding error")
}
