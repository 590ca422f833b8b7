package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"heritage-auction-service/internal/adapters/memory"
	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"
	"heritage-auction-service/internal/ports/outbound/mocks"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type staticTokens struct {
	expiresAt time.Time
}

func (s staticTokens) Issue(acc *account.Account) (string, time.Time, error) {
	return fmt.Sprintf("token-%s-%s", acc.Role, acc.Username), s.expiresAt, nil
}

type eventTypeMatcher struct {
	eventType outbound.EventType
}

func eventOfType(t outbound.EventType) gomock.Matcher {
	return eventTypeMatcher{eventType: t}
}

func (m eventTypeMatcher) Matches(x interface{}) bool {
	event, ok := x.(outbound.Event)
	return ok && event.Type == m.eventType
}

func (m eventTypeMatcher) String() string {
	return "is event of type " + string(m.eventType)
}

type testEnv struct {
	store       *memory.Store
	clock       *fakeClock
	locks       *ListingLocks
	broadcaster *mocks.MockBroadcaster
	accounts    *AccountService
	registry    *ListingRegistry
	engine      *AuctionEngine
	admin       *account.Account
}

type envOption func(*AuctionEngineParams)

func withLedger(wrap func(outbound.LedgerRepository) outbound.LedgerRepository) envOption {
	return func(p *AuctionEngineParams) {
		p.LedgerRepo = wrap(p.LedgerRepo)
	}
}

// newTestEnv wires the services over a memory store. Without expect, every
// broadcast is allowed and ignored.
func newTestEnv(t *testing.T, expect func(b *mocks.MockBroadcaster), opts ...envOption) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	if expect != nil {
		expect(broadcaster)
	} else {
		broadcaster.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	}

	logger := zerolog.Nop()
	clock := newFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	store := memory.NewStore(memory.StoreParams{Logger: logger})
	locks := NewListingLocks()

	gate := NewAccessGate(AccessGateParams{AccountRepo: store.GetAccountRepository(), Logger: logger})
	accounts := NewAccountService(AccountServiceParams{
		AccountRepo: store.GetAccountRepository(),
		Gate:        gate,
		Hasher:      plainHasher{},
		Tokens:      staticTokens{expiresAt: clock.Now().Add(time.Hour)},
		Clock:       clock.Now,
		Logger:      logger,
	})
	registry := NewListingRegistry(ListingRegistryParams{
		ListingRepo:      store.GetListingRepository(),
		LedgerRepo:       store.GetLedgerRepository(),
		Gate:             gate,
		Locks:            locks,
		Broadcaster:      broadcaster,
		SweepConcurrency: 4,
		Clock:            clock.Now,
		Logger:           logger,
	})

	engineParams := AuctionEngineParams{
		ListingRepo: store.GetListingRepository(),
		LedgerRepo:  store.GetLedgerRepository(),
		Gate:        gate,
		Locks:       locks,
		Broadcaster: broadcaster,
		Clock:       clock.Now,
		Logger:      logger,
	}
	for _, opt := range opts {
		opt(&engineParams)
	}
	engine := NewAuctionEngine(engineParams)

	admin, err := accounts.CreateAdmin(context.Background(), "admin", "Temple Admin", "9000000000", "admin")
	require.NoError(t, err)

	return &testEnv{
		store:       store,
		clock:       clock,
		locks:       locks,
		broadcaster: broadcaster,
		accounts:    accounts,
		registry:    registry,
		engine:      engine,
		admin:       admin,
	}
}

func (env *testEnv) register(t *testing.T, username string) *account.Account {
	t.Helper()
	acc, err := env.accounts.Register(context.Background(), inbound.RegisterRequest{
		FullName: strings.ToUpper(username[:1]) + username[1:],
		Username: username,
		Password: "secret",
		Mobile:   "9876543210",
	})
	require.NoError(t, err)
	return acc
}

func (env *testEnv) approvedBuyer(t *testing.T, username string) *account.Account {
	t.Helper()
	acc := env.register(t, username)
	reviewed, err := env.accounts.Review(context.Background(), inbound.ReviewRequest{
		AdminID:   env.admin.ID,
		AccountID: acc.ID,
		Decision:  account.DecisionApprove,
	})
	require.NoError(t, err)
	return reviewed
}

func (env *testEnv) createListing(t *testing.T, basePrice int64, open time.Duration) *listing.Listing {
	t.Helper()
	l, err := env.registry.CreateListing(context.Background(), inbound.CreateListingRequest{
		ActorID:   env.admin.ID,
		Title:     "Carved Sandalwood Box",
		BasePrice: money.FromMajor(basePrice),
		Duration:  open,
	})
	require.NoError(t, err)
	return l
}

func (env *testEnv) bid(account *account.Account, l *listing.Listing, amount int64) error {
	_, err := env.engine.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AccountID: account.ID,
		ListingID: l.ID,
		Amount:    money.FromMajor(amount),
	})
	return err
}
