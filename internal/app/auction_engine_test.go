package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"
	"heritage-auction-service/internal/ports/outbound/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_OutbidThenCloseScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rohan := env.approvedBuyer(t, "rohan")
	priya := env.approvedBuyer(t, "priya_art")
	start := env.clock.Now()
	l := env.createListing(t, 5000, 24*time.Hour)

	require.NoError(t, env.bid(rohan, l, 5500))

	err := env.bid(priya, l, 5500)
	require.ErrorIs(t, err, shared.ErrBidTooLow)
	var tooLow *shared.BidTooLowError
	require.True(t, errors.As(err, &tooLow))
	require.Equal(t, money.FromMajor(5500), tooLow.CurrentHighest)

	results, err := env.registry.AdvanceTime(ctx, start.Add(25*time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, l.ID, results[0].ListingID)
	require.NotNil(t, results[0].WinnerID)
	require.Equal(t, rohan.ID, *results[0].WinnerID)
	require.Equal(t, money.FromMajor(5500), results[0].FinalPrice)

	env.clock.Set(start.Add(25 * time.Hour))
	require.ErrorIs(t, env.bid(rohan, l, 6000), shared.ErrAuctionClosed)

	history, err := env.engine.GetBids(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, money.FromMajor(5500), history[0].Amount)
	require.Equal(t, "rohan", history[0].BidderUsername)
}

func TestPlaceBid_RejectsAmountsAtOrBelowHighest(t *testing.T) {
	env := newTestEnv(t, nil)
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 5000, time.Hour)

	require.ErrorIs(t, env.bid(rohan, l, 5000), shared.ErrBidTooLow)
	require.ErrorIs(t, env.bid(rohan, l, 10), shared.ErrBidTooLow)
	require.NoError(t, env.bid(rohan, l, 5001))
	require.ErrorIs(t, env.bid(rohan, l, 5001), shared.ErrBidTooLow)
	require.ErrorIs(t, env.bid(rohan, l, 5000), shared.ErrBidTooLow)

	// outbidding yourself is allowed
	require.NoError(t, env.bid(rohan, l, 5002))
}

func TestPlaceBid_AccessDenied(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	l := env.createListing(t, 100, time.Hour)

	pending := env.register(t, "meera")
	require.ErrorIs(t, env.bid(pending, l, 200), shared.ErrPendingApproval)

	rejected := env.register(t, "vikram")
	_, err := env.accounts.Review(ctx, inbound.ReviewRequest{
		AdminID: env.admin.ID, AccountID: rejected.ID, Decision: account.DecisionReject,
	})
	require.NoError(t, err)
	require.ErrorIs(t, env.bid(rejected, l, 200), shared.ErrAccountRejected)

	require.ErrorIs(t, env.bid(env.admin, l, 200), shared.ErrUnauthorized)

	_, err = env.engine.PlaceBid(ctx, inbound.PlaceBidRequest{
		AccountID: uuid.New(), ListingID: l.ID, Amount: money.FromMajor(200),
	})
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	history, err := env.engine.GetBids(ctx, l.ID)
	require.NoError(t, err)
	require.Empty(t, history)

	current, err := env.registry.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, money.FromMajor(100), current.CurrentHighest)
}

func TestPlaceBid_UnknownListing(t *testing.T) {
	env := newTestEnv(t, nil)
	rohan := env.approvedBuyer(t, "rohan")

	_, err := env.engine.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AccountID: rohan.ID, ListingID: uuid.New(), Amount: money.FromMajor(10),
	})
	require.ErrorIs(t, err, shared.ErrListingNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlaceBid_ExpiredBeforeSweep(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)

	env.clock.Set(l.CloseTime)
	require.ErrorIs(t, env.bid(rohan, l, 200), shared.ErrAuctionClosed)

	// nothing closed it yet, the refusal is based on the clock alone
	current, err := env.registry.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.False(t, current.IsClosed())
}

func TestPlaceBid_ClosedCheckPrecedesAccessGate(t *testing.T) {
	env := newTestEnv(t, nil)
	pending := env.register(t, "meera")
	l := env.createListing(t, 100, time.Hour)

	_, err := env.registry.Close(context.Background(), l.ID)
	require.NoError(t, err)

	require.ErrorIs(t, env.bid(pending, l, 200), shared.ErrAuctionClosed)
}

func TestPlaceBid_ConcurrentRace(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	low := env.approvedBuyer(t, "rohan")
	high := env.approvedBuyer(t, "priya_art")

	for i := 0; i < 25; i++ {
		l := env.createListing(t, 50, time.Hour)

		var wg sync.WaitGroup
		start := make(chan struct{})
		var errLow, errHigh error
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			errLow = env.bid(low, l, 100)
		}()
		go func() {
			defer wg.Done()
			<-start
			errHigh = env.bid(high, l, 150)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, errHigh)

		current, err := env.registry.GetListing(ctx, l.ID)
		require.NoError(t, err)
		require.Equal(t, money.FromMajor(150), current.CurrentHighest)

		history, err := env.engine.GetBids(ctx, l.ID)
		require.NoError(t, err)
		if errLow == nil {
			require.Len(t, history, 2)
			require.Equal(t, money.FromMajor(100), history[0].Amount)
			require.Equal(t, money.FromMajor(150), history[1].Amount)
		} else {
			require.ErrorIs(t, errLow, shared.ErrBidTooLow)
			require.Len(t, history, 1)
			require.Equal(t, money.FromMajor(150), history[0].Amount)
		}
	}
}

func TestPlaceBid_ConcurrentEqualBidsOneWins(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.approvedBuyer(t, "rohan")
	b := env.approvedBuyer(t, "priya_art")
	l := env.createListing(t, 50, time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, bidder := range []*account.Account{a, b} {
		wg.Add(1)
		go func(slot int, bidder *account.Account) {
			defer wg.Done()
			errs[slot] = env.bid(bidder, l, 75)
		}(i, bidder)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, shared.ErrBidTooLow)
	}
	require.Equal(t, 1, accepted)
}

func TestPlaceBid_LedgerStaysStrictlyIncreasing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	bidders := []string{"rohan", "priya_art", "anand"}
	accounts := make([]uuid.UUID, 0, len(bidders))
	for _, name := range bidders {
		accounts = append(accounts, env.approvedBuyer(t, name).ID)
	}
	l := env.createListing(t, 100, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := money.FromMajor(int64(101 + (i*37)%60))
			_, err := env.engine.PlaceBid(ctx, inbound.PlaceBidRequest{
				AccountID: accounts[i%len(accounts)],
				ListingID: l.ID,
				Amount:    amount,
			})
			if err != nil && !errors.Is(err, shared.ErrBidTooLow) {
				t.Errorf("unexpected bid error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	history, err := env.engine.GetBids(ctx, l.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for i, b := range history {
		require.Equal(t, int64(i+1), b.Sequence)
		if i > 0 {
			require.Greater(t, b.Amount, history[i-1].Amount)
			require.False(t, b.PlacedAt.Before(history[i-1].PlacedAt))
		}
	}

	current, err := env.registry.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, history[len(history)-1].Amount, current.CurrentHighest)
	require.Equal(t, int64(len(history)), current.BidCount)
}

func TestPlaceBid_CancelledWhileWaitingForListing(t *testing.T) {
	env := newTestEnv(t, nil)
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)

	release, err := env.locks.Acquire(context.Background(), l.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = env.engine.PlaceBid(ctx, inbound.PlaceBidRequest{
		AccountID: rohan.ID, ListingID: l.ID, Amount: money.FromMajor(200),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	release()

	history, err := env.engine.GetBids(context.Background(), l.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

// racingLedger lets a rival bid land just before the first append, the way
// another process sharing the database would.
type racingLedger struct {
	outbound.LedgerRepository
	once  sync.Once
	rival *bid.Bid
}

func (r *racingLedger) Append(ctx context.Context, b *bid.Bid, expected money.Amount) error {
	var rivalErr error
	r.once.Do(func() {
		rivalErr = r.LedgerRepository.Append(ctx, r.rival, expected)
	})
	if rivalErr != nil {
		return rivalErr
	}
	return r.LedgerRepository.Append(ctx, b, expected)
}

func TestPlaceBid_ReevaluatesAfterLosingAppend(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		wantErr   error
		wantCount int
	}{
		{"still highest after re-read", 7000, nil, 2},
		{"outbid by the rival", 5500, shared.ErrBidTooLow, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			racer := &racingLedger{}
			env := newTestEnv(t, nil, withLedger(func(inner outbound.LedgerRepository) outbound.LedgerRepository {
				racer.LedgerRepository = inner
				return racer
			}))
			ctx := context.Background()
			rohan := env.approvedBuyer(t, "rohan")
			priya := env.approvedBuyer(t, "priya_art")
			l := env.createListing(t, 5000, time.Hour)
			racer.rival = bid.New(l.ID, priya.ID, priya.Username, money.FromMajor(6000), 1, env.clock.Now())

			placed, err := env.engine.PlaceBid(ctx, inbound.PlaceBidRequest{
				AccountID: rohan.ID, ListingID: l.ID, Amount: money.FromMajor(tt.amount),
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var tooLow *shared.BidTooLowError
				require.True(t, errors.As(err, &tooLow))
				require.Equal(t, money.FromMajor(6000), tooLow.CurrentHighest)
			} else {
				require.NoError(t, err)
				require.Equal(t, int64(2), placed.Sequence)
			}

			history, err := env.engine.GetBids(ctx, l.ID)
			require.NoError(t, err)
			require.Len(t, history, tt.wantCount)
		})
	}
}

type failingLedger struct {
	outbound.LedgerRepository
	err   error
	calls atomic.Int32
}

func (f *failingLedger) Append(ctx context.Context, b *bid.Bid, expected money.Amount) error {
	f.calls.Add(1)
	return f.err
}

func TestPlaceBid_StorageFailureIsNotRetried(t *testing.T) {
	failing := &failingLedger{err: shared.StorageError("append bid", errors.New("disk full"))}
	env := newTestEnv(t, nil, withLedger(func(inner outbound.LedgerRepository) outbound.LedgerRepository {
		failing.LedgerRepository = inner
		return failing
	}))
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)

	require.ErrorIs(t, env.bid(rohan, l, 200), shared.ErrStorageFailure)
	require.Equal(t, int32(1), failing.calls.Load())
}

func TestPlaceBid_GivesUpOnPersistentConflict(t *testing.T) {
	failing := &failingLedger{err: shared.ErrStaleListing}
	env := newTestEnv(t, nil, withLedger(func(inner outbound.LedgerRepository) outbound.LedgerRepository {
		failing.LedgerRepository = inner
		return failing
	}))
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)

	err := env.bid(rohan, l, 200)
	require.ErrorIs(t, err, shared.ErrStorageFailure)
	require.Equal(t, int32(maxAppendAttempts), failing.calls.Load())
}

func TestGetBidsByBidder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rohan := env.approvedBuyer(t, "rohan")
	priya := env.approvedBuyer(t, "priya_art")
	first := env.createListing(t, 100, time.Hour)
	second := env.createListing(t, 200, time.Hour)

	require.NoError(t, env.bid(rohan, first, 150))
	require.NoError(t, env.bid(priya, first, 160))
	require.NoError(t, env.bid(rohan, second, 250))

	mine, err := env.engine.GetBidsByBidder(ctx, rohan.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, first.ID, mine[0].ListingID)
	require.Equal(t, second.ID, mine[1].ListingID)

	_, err = env.engine.GetBidsByBidder(ctx, uuid.New())
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestPlaceBid_PublishesBidPlaced(t *testing.T) {
	var published []outbound.Event
	var mu sync.Mutex
	env := newTestEnv(t, func(b *mocks.MockBroadcaster) {
		b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ uuid.UUID, event outbound.Event) error {
				mu.Lock()
				defer mu.Unlock()
				published = append(published, event)
				return nil
			}).AnyTimes()
	})
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)
	require.NoError(t, env.bid(rohan, l, 120))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 2)
	require.Equal(t, outbound.EventTypeListingCreated, published[0].Type)
	require.Equal(t, outbound.EventTypeBidPlaced, published[1].Type)
	require.Equal(t, l.ID, published[1].ListingID)
	require.Equal(t, money.FromMajor(120), published[1].Data["amount"])
}

func TestPlaceBid_BroadcastFailureDoesNotFailBid(t *testing.T) {
	env := newTestEnv(t, func(b *mocks.MockBroadcaster) {
		b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down")).AnyTimes()
	})
	rohan := env.approvedBuyer(t, "rohan")
	l := env.createListing(t, 100, time.Hour)

	require.NoError(t, env.bid(rohan, l, 120))
}

func TestSnapshot_WaitsForListingSection(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createListing(t, 100, time.Hour)

	release, err := env.locks.Acquire(context.Background(), l.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = env.engine.Snapshot(ctx, l.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	snapshot, bids, err := env.engine.Snapshot(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, money.FromMajor(100), snapshot.CurrentHighest)
	require.Empty(t, bids)
}

func TestSnapshot_LedgerMatchesCurrentHighestUnderLoad(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createListing(t, 100, time.Hour)
	bidders := []*account.Account{env.approvedBuyer(t, "rohan"), env.approvedBuyer(t, "priya_art")}

	var wg sync.WaitGroup
	for i, bidder := range bidders {
		wg.Add(1)
		go func(offset int, bidder *account.Account) {
			defer wg.Done()
			for amount := int64(101 + offset); amount <= 160; amount += 2 {
				_ = env.bid(bidder, l, amount)
			}
		}(i, bidder)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snapshot, bids, err := env.engine.Snapshot(context.Background(), l.ID)
		require.NoError(t, err)
		if len(bids) == 0 {
			require.Equal(t, snapshot.BasePrice, snapshot.CurrentHighest)
		} else {
			require.Equal(t, bids[len(bids)-1].Amount, snapshot.CurrentHighest)
			require.EqualValues(t, len(bids), snapshot.BidCount)
		}

		select {
		case <-done:
			return
		default:
		}
	}
}
