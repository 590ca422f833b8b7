package app

import (
	"heritage-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// RepositorySource is satisfied by both the memory store and the database
// repository factory
type RepositorySource interface {
	GetAccountRepository() outbound.AccountRepository
	GetListingRepository() outbound.ListingRepository
	GetLedgerRepository() outbound.LedgerRepository
}

// Services bundles the application services over one store. The registry
// and the engine share a single ListingLocks.
type Services struct {
	Gate     *AccessGate
	Accounts *AccountService
	Listings *ListingRegistry
	Engine   *AuctionEngine
}

type ServicesParams struct {
	Repositories     RepositorySource
	Broadcaster      outbound.Broadcaster
	Hasher           outbound.PasswordHasher
	Tokens           outbound.TokenIssuer
	SweepConcurrency int
	Clock            Clock
	Logger           zerolog.Logger
}

func NewServices(params ServicesParams) *Services {
	accountRepo := params.Repositories.GetAccountRepository()
	listingRepo := params.Repositories.GetListingRepository()
	ledgerRepo := params.Repositories.GetLedgerRepository()

	gate := NewAccessGate(AccessGateParams{AccountRepo: accountRepo, Logger: params.Logger})
	locks := NewListingLocks()

	return &Services{
		Gate: gate,
		Accounts: NewAccountService(AccountServiceParams{
			AccountRepo: accountRepo,
			Gate:        gate,
			Hasher:      params.Hasher,
			Tokens:      params.Tokens,
			Clock:       params.Clock,
			Logger:      params.Logger,
		}),
		Listings: NewListingRegistry(ListingRegistryParams{
			ListingRepo:      listingRepo,
			LedgerRepo:       ledgerRepo,
			Gate:             gate,
			Locks:            locks,
			Broadcaster:      params.Broadcaster,
			SweepConcurrency: params.SweepConcurrency,
			Clock:            params.Clock,
			Logger:           params.Logger,
		}),
		Engine: NewAuctionEngine(AuctionEngineParams{
			ListingRepo: listingRepo,
			LedgerRepo:  ledgerRepo,
			Gate:        gate,
			Locks:       locks,
			Broadcaster: params.Broadcaster,
			Clock:       params.Clock,
			Logger:      params.Logger,
		}),
	}
}
