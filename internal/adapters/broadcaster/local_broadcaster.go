package broadcaster

import (
	"context"
	"sync"

	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalBroadcaster fans events out to subscribers inside this process. It is
// used when Redis is disabled, which only makes sense for a single instance.
type LocalBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[string]chan outbound.Event // listingID -> clientID -> channel
	logger      zerolog.Logger
}

type LocalBroadcasterParams struct {
	Logger zerolog.Logger
}

func NewLocalBroadcaster(params LocalBroadcasterParams) *LocalBroadcaster {
	return &LocalBroadcaster{
		subscribers: make(map[uuid.UUID]map[string]chan outbound.Event),
		logger:      params.Logger.With().Str("component", "local_broadcaster").Logger(),
	}
}

// Subscribe registers eventChan for the listing. A done ctx registers nothing.
func (b *LocalBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[listingID] == nil {
		b.subscribers[listingID] = make(map[string]chan outbound.Event)
	}
	b.subscribers[listingID][clientID] = eventChan

	b.logger.Debug().Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Client subscribed to listing")
	return nil
}

func (b *LocalBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.subscribers[listingID]
	if !ok {
		return nil
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(b.subscribers, listingID)
	}

	b.logger.Debug().Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Client unsubscribed from listing")
	return nil
}

// Publish never blocks; a subscriber with a full channel misses the event
func (b *LocalBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for clientID, ch := range b.subscribers[listingID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
		}
	}
	return nil
}

func (b *LocalBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.subscribers[listingID][clientID]
	return ok
}

func (b *LocalBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[uuid.UUID]map[string]chan outbound.Event)
	return nil
}
