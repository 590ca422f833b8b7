package memory

import (
	"sync"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store keeps accounts, listings and the bid ledger in process memory.
// One mutex covers all three so a ledger append and the listing summary it
// advances are observed together. Values are copied on the way in and out.
type Store struct {
	mu sync.RWMutex

	accounts     map[uuid.UUID]*account.Account
	usernames    map[string]uuid.UUID
	accountOrder []uuid.UUID

	listings     map[uuid.UUID]*listing.Listing
	listingOrder []uuid.UUID

	ledger   map[uuid.UUID][]*bid.Bid
	byBidder map[uuid.UUID][]*bid.Bid

	closed bool
	logger zerolog.Logger
}

type StoreParams struct {
	Logger zerolog.Logger
}

// NewStore creates an empty store
func NewStore(params StoreParams) *Store {
	return &Store{
		accounts:  make(map[uuid.UUID]*account.Account),
		usernames: make(map[string]uuid.UUID),
		listings:  make(map[uuid.UUID]*listing.Listing),
		ledger:    make(map[uuid.UUID][]*bid.Bid),
		byBidder:  make(map[uuid.UUID][]*bid.Bid),
		logger:    params.Logger.With().Str("component", "memory_store").Logger(),
	}
}

// GetAccountRepository returns the account repository
func (s *Store) GetAccountRepository() outbound.AccountRepository {
	return &AccountRepository{store: s}
}

// GetListingRepository returns the listing repository
func (s *Store) GetListingRepository() outbound.ListingRepository {
	return &ListingRepository{store: s}
}

// GetLedgerRepository returns the ledger repository
func (s *Store) GetLedgerRepository() outbound.LedgerRepository {
	return &LedgerRepository{store: s}
}

// Close releases the store. Later calls fail with ErrStorageFailure.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.logger.Info().
		Int("accounts", len(s.accounts)).
		Int("listings", len(s.listings)).
		Msg("Memory store closed")
	return nil
}
