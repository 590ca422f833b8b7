package account

import (
	"fmt"
	"strings"
	"time"

	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Role is the capability class of an account
type Role string

const (
	RoleAdmin Role = "admin"
	RoleBuyer Role = "buyer"
)

// Status is the admin-reviewed eligibility of an account
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Action is something an account asks the access gate to permit
type Action string

const (
	ActionCreateListing Action = "create_listing"
	ActionReviewAccount Action = "review_account"
	ActionCloseListing  Action = "close_listing"
	ActionSubmitBid     Action = "submit_bid"
)

// Decision is an admin's verdict on a pending registration
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Account represents a registered marketplace participant
type Account struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Mobile       string     `json:"mobile"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
}

// NewBuyer creates a buyer awaiting review
func NewBuyer(username, fullName, mobile, passwordHash string, now time.Time) *Account {
	return &Account{
		ID:           uuid.New(),
		Username:     username,
		FullName:     fullName,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		Role:         RoleBuyer,
		Status:       StatusPending,
		CreatedAt:    now,
	}
}

// NewAdmin creates an admin. Admins are never reviewed.
func NewAdmin(username, fullName, mobile, passwordHash string, now time.Time) *Account {
	return &Account{
		ID:           uuid.New(),
		Username:     username,
		FullName:     fullName,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		Role:         RoleAdmin,
		Status:       StatusApproved,
		CreatedAt:    now,
	}
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a *Account) IsPending() bool {
	return a.Status == StatusPending
}

// Review applies an admin decision. A registration is reviewed exactly once.
func (a *Account) Review(decision Decision, at time.Time) error {
	next, err := decision.Status()
	if err != nil {
		return err
	}
	if a.Status != StatusPending {
		return shared.ErrAlreadyReviewed
	}
	a.Status = next
	a.ReviewedAt = &at
	return nil
}

// Clone returns a copy safe to hand out of a store
func (a *Account) Clone() *Account {
	c := *a
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// Status maps a decision onto the terminal account status it produces
func (d Decision) Status() (Status, error) {
	switch d {
	case DecisionApprove:
		return StatusApproved, nil
	case DecisionReject:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", shared.ErrInvalidRequest, string(d))
	}
}

// ParseRole accepts "admin"/"buyer" in any case
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleBuyer:
		return RoleBuyer, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", shared.ErrInvalidRequest, s)
	}
}

// Authorize is the access gate predicate. It has no side effects.
func Authorize(a *Account, action Action) error {
	switch action {
	case ActionCreateListing, ActionReviewAccount, ActionCloseListing:
		if a.Role != RoleAdmin {
			return shared.ErrUnauthorized
		}
		return nil
	case ActionSubmitBid:
		if a.Role != RoleBuyer {
			return shared.ErrUnauthorized
		}
		switch a.Status {
		case StatusApproved:
			return nil
		case StatusPending:
			return shared.ErrPendingApproval
		case StatusRejected:
			return shared.ErrAccountRejected
		default:
			return shared.ErrUnauthorized
		}
	default:
		return shared.ErrUnauthorized
	}
}
