package db

import (
	"heritage-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAccountRepository returns the account repository
func (f *RepositoryFactory) GetAccountRepository() outbound.AccountRepository {
	return NewAccountRepository(f.conn)
}

// GetListingRepository returns the listing repository
func (f *RepositoryFactory) GetListingRepository() outbound.ListingRepository {
	return NewListingRepository(f.conn)
}

// GetLedgerRepository returns the ledger repository
func (f *RepositoryFactory) GetLedgerRepository() outbound.LedgerRepository {
	return NewLedgerRepository(f.conn)
}
