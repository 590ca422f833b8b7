package memory

import (
	"context"
	"sort"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AccountRepository implements the account repository interface
type AccountRepository struct {
	store *Store
}

func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("create account"); err != nil {
		return err
	}
	if _, taken := s.usernames[acc.Username]; taken {
		return shared.ErrUsernameTaken
	}

	s.accounts[acc.ID] = acc.Clone()
	s.usernames[acc.Username] = acc.ID
	s.accountOrder = append(s.accountOrder, acc.ID)
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get account"); err != nil {
		return nil, err
	}
	acc, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get account"); err != nil {
		return nil, err
	}
	id, ok := s.usernames[username]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

// ListByStatus returns matching accounts in registration order
func (r *AccountRepository) ListByStatus(ctx context.Context, role account.Role, status account.Status) ([]*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("list accounts"); err != nil {
		return nil, err
	}
	result := make([]*account.Account, 0)
	for _, id := range s.accountOrder {
		acc := s.accounts[id]
		if acc.Role == role && acc.Status == status {
			result = append(result, acc.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *AccountRepository) UpdateReview(ctx context.Context, acc *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("update account"); err != nil {
		return err
	}
	stored, ok := s.accounts[acc.ID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	if !stored.IsPending() {
		return shared.ErrAlreadyReviewed
	}

	stored.Status = acc.Status
	if acc.ReviewedAt != nil {
		t := *acc.ReviewedAt
		stored.ReviewedAt = &t
	}
	return nil
}
