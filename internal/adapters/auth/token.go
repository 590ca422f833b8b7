package auth

import (
	"errors"
	"fmt"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "heritage-auction-service"

// Claims carried by an access token. The subject is the account ID.
type Claims struct {
	Username string       `json:"username"`
	Role     account.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens. It implements both
// outbound.TokenIssuer and inbound.TokenVerifier.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenManagerParams struct {
	Secret string
	TTL    time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

func NewTokenManager(params TokenManagerParams) (*TokenManager, error) {
	if params.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if params.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(params.Secret), ttl: params.TTL, now: now}, nil
}

func (m *TokenManager) Issue(acc *account.Account) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	claims := Claims{
		Username: acc.Username,
		Role:     acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry. Any failure matches ErrInvalidCredentials.
func (m *TokenManager) Verify(tokenStr string) (*inbound.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", shared.ErrInvalidCredentials)
	}

	return &inbound.Identity{
		AccountID: accountID,
		Username:  claims.Username,
		Role:      claims.Role,
	}, nil
}
