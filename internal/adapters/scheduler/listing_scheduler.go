package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepLeaseKey = "listing:sweep:lease"

// releaseLease deletes the lease only if this instance still holds it
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ListingCloser closes listings whose close time has passed
type ListingCloser interface {
	AdvanceTime(ctx context.Context, now time.Time) ([]*shared.ListingCloseResult, error)
}

// ListingScheduler periodically closes expired listings. With a Redis client
// the sweep is guarded by a lease so only one instance runs it per tick.
type ListingScheduler struct {
	redis      *redis.Client
	closer     ListingCloser
	interval   time.Duration
	leaseTTL   time.Duration
	instanceID string
	now        func() time.Time
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type ListingSchedulerParams struct {
	// RedisClient is optional
	RedisClient *redis.Client
	Closer      ListingCloser
	Interval    time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

func NewListingScheduler(params ListingSchedulerParams) *ListingScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	instanceID := uuid.New().String()

	return &ListingScheduler{
		redis:      params.RedisClient,
		closer:     params.Closer,
		interval:   interval,
		leaseTTL:   interval * 5,
		instanceID: instanceID,
		now:        now,
		logger:     params.Logger.With().Str("component", "listing_scheduler").Str("instance_id", instanceID).Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the scheduler loop
func (s *ListingScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Bool("leased", s.redis != nil).Msg("Starting listing scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler, waiting for a running sweep
func (s *ListingScheduler) Stop() {
	s.logger.Info().Msg("Stopping listing scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *ListingScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("Expiry sweep failed")
			}
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// SweepOnce closes every listing expired as of now. It reports how many
// listings it closed; zero with a nil error when another instance holds the lease.
func (s *ListingScheduler) SweepOnce(ctx context.Context) (int, error) {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, sweepLeaseKey, s.instanceID, s.leaseTTL).Result()
		if err != nil {
			return 0, err
		}
		if !acquired {
			s.logger.Debug().Msg("Sweep lease held by another instance")
			return 0, nil
		}
		defer func() {
			if err := releaseLease.Run(context.Background(), s.redis, []string{sweepLeaseKey}, s.instanceID).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to release sweep lease")
			}
		}()
	}

	results, err := s.closer.AdvanceTime(ctx, s.now())
	for _, result := range results {
		logger := s.logger.Info().Str("listing_id", result.ListingID.String()).Str("final_price", result.FinalPrice.String())
		if result.WinnerID != nil {
			logger = logger.Str("winner_id", result.WinnerID.String())
		}
		logger.Msg("Listing closed by sweep")
	}

	return len(results), err
}
