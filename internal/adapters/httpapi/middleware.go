package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const identityKey = "identity"

var errMissingToken = errors.New("missing bearer token")

// RequestLogger logs incoming requests with timing
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next() // process request

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP Request")
	}
}

// Authenticate enforces a Bearer token and stores the caller's identity
func Authenticate(tokens inbound.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			JSONError(c, http.StatusUnauthorized, shared.CodeInvalidCredentials, errMissingToken, "authentication required")
			return
		}

		identity, err := tokens.Verify(parts[1])
		if err != nil {
			JSONError(c, http.StatusUnauthorized, shared.CodeInvalidCredentials, err, "invalid token")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// identityFrom returns the identity stored by Authenticate
func identityFrom(c *gin.Context) *inbound.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*inbound.Identity)
	return identity
}
