package inbound

import (
	"context"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"

	"github.com/google/uuid"
)

// AccountService defines the interface for registration and approval
type AccountService interface {
	// Register creates a pending buyer account
	Register(ctx context.Context, req RegisterRequest) (*account.Account, error)

	// Login verifies credentials and issues an access token
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)

	// Review approves or rejects a pending registration
	Review(ctx context.Context, req ReviewRequest) (*account.Account, error)

	// ListPending returns the approval queue, oldest first
	ListPending(ctx context.Context, adminID uuid.UUID) ([]*account.Account, error)

	// GetAccount retrieves an account by ID
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
}

// ListingService defines the interface for listing operations
type ListingService interface {
	// CreateListing creates a new listing
	CreateListing(ctx context.Context, req CreateListingRequest) (*listing.Listing, error)

	// GetListing retrieves a listing by ID
	GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)

	// ListListings retrieves a page of listings
	ListListings(ctx context.Context, req ListListingsRequest) ([]*listing.Listing, error)

	// CloseListing closes a listing on behalf of an admin
	CloseListing(ctx context.Context, actorID, listingID uuid.UUID) (*listing.Listing, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on a listing
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBids retrieves the bid history of a listing in acceptance order
	GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// GetBidsByBidder retrieves every bid an account has placed
	GetBidsByBidder(ctx context.Context, accountID uuid.UUID) ([]*bid.Bid, error)
}

// TokenVerifier resolves an access token to the caller's identity
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Identity is the authenticated caller behind a request
type Identity struct {
	AccountID uuid.UUID    `json:"account_id"`
	Username  string       `json:"username"`
	Role      account.Role `json:"role"`
}

// request to register a buyer
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Mobile   string `json:"mobile"`
}

// request to log in
type LoginRequest struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Role     account.Role `json:"role"`
}

// LoginResult carries the issued token
type LoginResult struct {
	Account   *account.Account `json:"account"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// request to review a registration
type ReviewRequest struct {
	AdminID   uuid.UUID        `json:"admin_id"`
	AccountID uuid.UUID        `json:"account_id"`
	Decision  account.Decision `json:"decision"`
}

// request to create a listing. Either CloseTime or Duration sets the close time.
type CreateListingRequest struct {
	ActorID     uuid.UUID     `json:"actor_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image_url"`
	BasePrice   money.Amount  `json:"base_price"`
	CloseTime   *time.Time    `json:"close_time,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// request to list listings
type ListListingsRequest struct {
	Status   *listing.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid
type PlaceBidRequest struct {
	AccountID uuid.UUID    `json:"account_id"`
	ListingID uuid.UUID    `json:"listing_id"`
	Amount    money.Amount `json:"amount"`
}
