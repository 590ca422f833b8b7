package app

import (
	"context"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccessGate resolves an account and checks it against an action
type AccessGate struct {
	accountRepo outbound.AccountRepository
	logger      zerolog.Logger
}

type AccessGateParams struct {
	AccountRepo outbound.AccountRepository
	Logger      zerolog.Logger
}

func NewAccessGate(params AccessGateParams) *AccessGate {
	return &AccessGate{
		accountRepo: params.AccountRepo,
		logger:      params.Logger.With().Str("component", "access_gate").Logger(),
	}
}

// AuthorizeAccount returns the account when it may perform action.
// Denials come back unchanged so callers can report them verbatim.
func (g *AccessGate) AuthorizeAccount(ctx context.Context, accountID uuid.UUID, action account.Action) (*account.Account, error) {
	acc, err := g.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		g.logger.Warn().Err(err).Str("account_id", accountID.String()).Str("action", string(action)).Msg("Account lookup failed")
		return nil, err
	}

	if err := account.Authorize(acc, action); err != nil {
		g.logger.Warn().
			Err(err).
			Str("account_id", accountID.String()).
			Str("role", string(acc.Role)).
			Str("status", string(acc.Status)).
			Str("action", string(action)).
			Msg("Access denied")
		return nil, err
	}

	return acc, nil
}
