package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func channelName(listingID uuid.UUID) string {
	return fmt.Sprintf("listing:%s", listingID.String())
}

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub,
// so events reach clients connected to any instance.
type RedisBroadcaster struct {
	client         *redis.Client
	subscribers    map[string]chan outbound.Event // clientID -> local channel
	pubsubs        map[string]*redis.PubSub       // clientID -> pubsub instance
	clientListings map[string]map[uuid.UUID]bool  // clientID -> listingID -> subscribed
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	logger         zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewRedisBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:         params.RedisClient,
		subscribers:    make(map[string]chan outbound.Event),
		pubsubs:        make(map[string]*redis.PubSub),
		clientListings: make(map[string]map[uuid.UUID]bool),
		ctx:            ctx,
		cancel:         cancel,
		logger:         params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific listing
func (r *RedisBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clientListings[clientID][listingID] {
		r.logger.Debug().
			Str("client_id", clientID).
			Str("listing_id", listingID.String()).
			Msg("Client already subscribed to listing")
		return nil
	}

	// Get or create pubsub connection for this client
	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub
		r.subscribers[clientID] = eventChan
		go r.listenForRedisMessages(pubsub, clientID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, channelName(listingID)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Failed to subscribe to Redis channel")
		if !exists {
			r.dropClientLocked(clientID)
		}
		return err
	}

	if r.clientListings[clientID] == nil {
		r.clientListings[clientID] = make(map[uuid.UUID]bool)
	}
	r.clientListings[clientID][listingID] = true

	r.logger.Info().
		Str("client_id", clientID).
		Str("listing_id", listingID.String()).
		Msg("Client subscribed to listing via Redis")
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific listing.
// The event channel belongs to the caller and is never closed here.
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listings, exists := r.clientListings[clientID]
	if !exists || !listings[listingID] {
		return nil
	}
	delete(listings, listingID)

	if len(listings) > 0 {
		if pubsub, ok := r.pubsubs[clientID]; ok {
			if err := pubsub.Unsubscribe(ctx, channelName(listingID)); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Error unsubscribing from Redis channel")
				return err
			}
		}
	} else {
		r.dropClientLocked(clientID)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("listing_id", listingID.String()).
		Msg("Client unsubscribed from listing")
	return nil
}

// dropClientLocked must be called with r.mu held
func (r *RedisBroadcaster) dropClientLocked(clientID string) {
	delete(r.clientListings, clientID)

	if pubsub, ok := r.pubsubs[clientID]; ok {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}
	delete(r.subscribers, clientID)
}

// Publish publishes an event to all subscribers of a listing via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName(listingID), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("listing_id", listingID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to listing")

	return nil
}

func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.clientListings[clientID][listingID]
}

// listenForRedisMessages forwards Redis messages to the client's channel.
// A full channel drops the event rather than stalling other clients.
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			r.mu.RLock()
			_, live := r.subscribers[clientID]
			if live {
				select {
				case localChan <- event:
				default:
					r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
				}
			}
			r.mu.RUnlock()
			if !live {
				return
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close drops every subscription. The Redis client is owned by the caller.
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID := range r.pubsubs {
		r.dropClientLocked(clientID)
	}
	return nil
}
