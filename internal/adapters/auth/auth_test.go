package auth

import (
	"testing"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("temple123")
	require.NoError(t, err)
	require.NotEqual(t, "temple123", hash)

	require.NoError(t, h.Compare(hash, "temple123"))
	require.Error(t, h.Compare(hash, "temple124"))
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	require.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	require.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
}

func newTestManager(t *testing.T, now *time.Time) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenManagerParams{
		Secret: "test-secret",
		TTL:    time.Hour,
		Now:    func() time.Time { return *now },
	})
	require.NoError(t, err)
	return m
}

func TestTokenManager_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)
	acc := account.NewBuyer("rohan", "Rohan", "1", "h", now)

	token, expiresAt, err := m.Issue(acc)
	require.NoError(t, err)
	require.True(t, expiresAt.Equal(now.Add(time.Hour)))

	identity, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, acc.ID, identity.AccountID)
	require.Equal(t, "rohan", identity.Username)
	require.Equal(t, account.RoleBuyer, identity.Role)
}

func TestTokenManager_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	token, _, err := m.Issue(account.NewAdmin("admin", "Admin", "1", "h", now))
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = m.Verify(token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	other, err := NewTokenManager(TokenManagerParams{Secret: "other-secret", TTL: time.Hour})
	require.NoError(t, err)
	forged, _, err := other.Issue(account.NewAdmin("admin", "Admin", "1", "h", now))
	require.NoError(t, err)

	_, err = m.Verify(forged)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             account.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = m.Verify("not-a-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestNewTokenManager_Validation(t *testing.T) {
	_, err := NewTokenManager(TokenManagerParams{TTL: time.Hour})
	require.Error(t, err)
	_, err = NewTokenManager(TokenManagerParams{Secret: "s"})
	require.Error(t, err)
}
