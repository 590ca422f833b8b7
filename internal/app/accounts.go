package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountService implements registration, login and the approval queue
type AccountService struct {
	accountRepo outbound.AccountRepository
	gate        *AccessGate
	hasher      outbound.PasswordHasher
	tokens      outbound.TokenIssuer
	now         Clock
	logger      zerolog.Logger
}

type AccountServiceParams struct {
	AccountRepo outbound.AccountRepository
	Gate        *AccessGate
	Hasher      outbound.PasswordHasher
	Tokens      outbound.TokenIssuer
	Clock       Clock
	Logger      zerolog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(params AccountServiceParams) *AccountService {
	return &AccountService{
		accountRepo: params.AccountRepo,
		gate:        params.Gate,
		hasher:      params.Hasher,
		tokens:      params.Tokens,
		now:         clockOrDefault(params.Clock),
		logger:      params.Logger.With().Str("component", "account_service").Logger(),
	}
}

// Register creates a buyer awaiting admin review
func (s *AccountService) Register(ctx context.Context, req inbound.RegisterRequest) (*account.Account, error) {
	username := strings.TrimSpace(req.Username)
	fullName := strings.TrimSpace(req.FullName)
	mobile := strings.TrimSpace(req.Mobile)

	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", shared.ErrInvalidRequest)
	case fullName == "":
		return nil, fmt.Errorf("%w: full name is required", shared.ErrInvalidRequest)
	case mobile == "":
		return nil, fmt.Errorf("%w: mobile is required", shared.ErrInvalidRequest)
	case req.Password == "":
		return nil, fmt.Errorf("%w: password is required", shared.ErrInvalidRequest)
	}

	s.logger.Info().Str("username", username).Msg("Registering buyer")

	if _, err := s.accountRepo.GetByUsername(ctx, username); err == nil {
		s.logger.Warn().Str("username", username).Msg("Username already exists")
		return nil, shared.ErrUsernameTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to hash password")
		return nil, err
	}

	acc := account.NewBuyer(username, fullName, mobile, hash, s.now())
	if err := s.accountRepo.Create(ctx, acc); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to save account")
		return nil, err
	}

	s.logger.Info().
		Str("account_id", acc.ID.String()).
		Str("username", acc.Username).
		Msg("Buyer registered, awaiting approval")
	return acc, nil
}

// CreateAdmin stores an approved admin account. Used for bootstrapping only.
func (s *AccountService) CreateAdmin(ctx context.Context, username, fullName, mobile, password string) (*account.Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	acc := account.NewAdmin(username, fullName, mobile, hash, s.now())
	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", acc.ID.String()).Str("username", username).Msg("Admin account created")
	return acc, nil
}

// Login checks the password and, when a role is given, that it matches
func (s *AccountService) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.LoginResult, error) {
	username := strings.TrimSpace(req.Username)

	acc, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn().Str("username", username).Msg("Login for unknown username")
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(acc.PasswordHash, req.Password); err != nil {
		s.logger.Warn().Str("username", username).Msg("Login with wrong password")
		return nil, shared.ErrInvalidCredentials
	}
	if req.Role != "" && req.Role != acc.Role {
		s.logger.Warn().
			Str("username", username).
			Str("requested_role", string(req.Role)).
			Msg("Login role does not match account")
		return nil, shared.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(acc)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", acc.ID.String()).Msg("Failed to issue token")
		return nil, err
	}

	s.logger.Info().Str("account_id", acc.ID.String()).Str("role", string(acc.Role)).Msg("Login succeeded")
	return &inbound.LoginResult{Account: acc, Token: token, ExpiresAt: expiresAt}, nil
}

// Review applies an admin's decision to a pending registration
func (s *AccountService) Review(ctx context.Context, req inbound.ReviewRequest) (*account.Account, error) {
	if _, err := s.gate.AuthorizeAccount(ctx, req.AdminID, account.ActionReviewAccount); err != nil {
		return nil, err
	}

	acc, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	if err := acc.Review(req.Decision, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("account_id", acc.ID.String()).Msg("Review refused")
		return nil, err
	}
	if err := s.accountRepo.UpdateReview(ctx, acc); err != nil {
		s.logger.Error().Err(err).Str("account_id", acc.ID.String()).Msg("Failed to save review")
		return nil, err
	}

	s.logger.Info().
		Str("account_id", acc.ID.String()).
		Str("admin_id", req.AdminID.String()).
		Str("status", string(acc.Status)).
		Msg("Account reviewed")
	return acc, nil
}

// ListPending returns buyers awaiting review, oldest first
func (s *AccountService) ListPending(ctx context.Context, adminID uuid.UUID) ([]*account.Account, error) {
	if _, err := s.gate.AuthorizeAccount(ctx, adminID, account.ActionReviewAccount); err != nil {
		return nil, err
	}
	return s.accountRepo.ListByStatus(ctx, account.RoleBuyer, account.StatusPending)
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}
