package outbound

import (
	"context"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"

	"github.com/google/uuid"
)

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	// Create stores a new account. Fails with ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, account *account.Account) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// GetByUsername retrieves an account by its unique username
	GetByUsername(ctx context.Context, username string) (*account.Account, error)

	// ListByStatus retrieves accounts with the given role and status, oldest first
	ListByStatus(ctx context.Context, role account.Role, status account.Status) ([]*account.Account, error)

	// UpdateReview records a review decision. Fails with ErrAlreadyReviewed
	// unless the stored account is still pending.
	UpdateReview(ctx context.Context, account *account.Account) error
}

// ListingRepository defines the interface for listing data operations.
// The current highest bid is never written here; it only moves through
// LedgerRepository.Append.
type ListingRepository interface {
	// Create creates a new listing
	Create(ctx context.Context, listing *listing.Listing) error

	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error)

	// List retrieves a page of listings, newest first, with an optional status filter
	List(ctx context.Context, status *listing.Status, page, pageSize int) ([]*listing.Listing, error)

	// ListExpired retrieves active listings whose close time is at or before now
	ListExpired(ctx context.Context, now time.Time) ([]*listing.Listing, error)

	// MarkClosed flips an active listing to closed. Closing a closed listing is a no-op.
	MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) error
}

// LedgerRepository is the append-only record of accepted bids
type LedgerRepository interface {
	// Append stores the bid and advances its listing's current highest,
	// bid count and last bid time as one unit. expectedHighest must match the
	// stored current highest and the listing must be active, otherwise
	// ErrStaleListing is returned and nothing is written.
	Append(ctx context.Context, bid *bid.Bid, expectedHighest money.Amount) error

	// History retrieves the bids of a listing in acceptance order
	History(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// ByBidder retrieves the bids of an account, oldest first
	ByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error)
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs access tokens for authenticated accounts
type TokenIssuer interface {
	Issue(account *account.Account) (token string, expiresAt time.Time, err error)
}
