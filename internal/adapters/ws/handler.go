package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"
	"heritage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultMaxWorkers  = 10
	defaultMaxCapacity = 100
	eventBufferSize    = 100
	requestTimeout     = 10 * time.Second
)

// SnapshotReader returns a listing together with its ledger
type SnapshotReader interface {
	Snapshot(ctx context.Context, listingID uuid.UUID) (*listing.Listing, []*bid.Bid, error)
}

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	tokens         inbound.TokenVerifier
	listingService inbound.ListingService
	bidService     inbound.BidService
	snapshots      SnapshotReader
	broadcaster    outbound.Broadcaster
	maxWorkers     int
	maxCapacity    int
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	Tokens         inbound.TokenVerifier
	ListingService inbound.ListingService
	BidService     inbound.BidService
	Snapshots      SnapshotReader
	Broadcaster    outbound.Broadcaster
	MaxWorkers     int
	MaxCapacity    int
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	maxWorkers := params.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	maxCapacity := params.MaxCapacity
	if maxCapacity <= 0 {
		maxCapacity = defaultMaxCapacity
	}
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		tokens:         params.Tokens,
		listingService: params.ListingService,
		bidService:     params.BidService,
		snapshots:      params.Snapshots,
		broadcaster:    params.Broadcaster,
		maxWorkers:     maxWorkers,
		maxCapacity:    maxCapacity,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket authenticates the caller and upgrades the connection.
// The token comes from ?token= or a Bearer Authorization header.
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	identity, err := handler.tokens.Verify(token)
	if err != nil {
		handler.logger.Debug().Err(err).Msg("Rejected WebSocket token")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		Identity:    *identity,
		Conn:        conn,
		Handler:     handler,
		MaxWorkers:  handler.maxWorkers,
		MaxCapacity: handler.maxCapacity,
		Logger:      handler.logger,
	})

	handler.registerClient(client)
	eventChan := handler.createEventChannel(client.id)

	if err := handler.broadcaster.Subscribe(client.ctx, outbound.CatalogChannel, client.id, eventChan); err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to subscribe client to catalog events")
	} else {
		client.trackSubscription(outbound.CatalogChannel)
	}

	client.Start()

	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("username", identity.Username).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, eventBufferSize)
	handler.eventChannels[clientID] = eventChan
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

// removeEventChannel forgets the channel without closing it; the listener
// goroutine exits on the client's context instead.
func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	delete(handler.eventChannels, clientID)
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	// The client's own context is already cancelled here
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	for _, listingID := range client.drainSubscriptions() {
		if err := handler.broadcaster.Unsubscribe(ctx, listingID, client.id); err != nil {
			handler.logger.Warn().Err(err).Str("client_id", client.id).Str("listing_id", listingID.String()).Msg("Failed to unsubscribe disconnected client")
		}
	}

	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client's socket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	for {
		select {
		case event := <-eventChan:
			if err := client.Send(convertEventToMessage(event)); err != nil {
				handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(ctx, client, msg)
	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(ctx, client, msg)
	case MessageTypePlaceBid:
		return handler.handlePlaceBid(ctx, client, msg)
	case MessageTypeGetListing:
		return handler.handleGetListing(ctx, client, msg)
	case MessageTypeListListings:
		return handler.handleListListings(ctx, client, msg)
	case MessageTypeBidHistory:
		return handler.handleBidHistory(ctx, client, msg)
	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func convertEventToMessage(event outbound.Event) *ServerMessage {
	msgType := MessageTypeListingUpdate
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msgType = MessageTypeBidPlaced
	case outbound.EventTypeListingClosed:
		msgType = MessageTypeListingClosed
	case outbound.EventTypeListingCreated:
		msgType = MessageTypeListingCreated
	}

	listingID := event.ListingID
	return &ServerMessage{
		Type:      msgType,
		ListingID: &listingID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleSubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	l, err := handler.listingService.GetListing(ctx, *msg.ListingID)
	if err != nil {
		return err
	}

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrInvalidRequest
	}

	if err := handler.broadcaster.Subscribe(ctx, l.ID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("listing_id", l.ID.String()).Msg("Failed to subscribe to listing")
		return err
	}
	client.trackSubscription(l.ID)

	// the client may have disconnected while subscribing, after its
	// subscriptions were drained
	if err := ctx.Err(); err != nil {
		client.untrackSubscription(l.ID)
		if unsubErr := handler.broadcaster.Unsubscribe(context.Background(), l.ID, client.id); unsubErr != nil {
			handler.logger.Warn().Err(unsubErr).Str("client_id", client.id).Str("listing_id", l.ID.String()).Msg("Failed to drop late subscription")
		}
		return err
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "subscribed"
	response.Data["listing"] = l

	handler.logger.Info().Str("client_id", client.id).Str("listing_id", l.ID.String()).Msg("Client subscribed to listing")
	return client.Send(response)
}

func (handler *WsHandler) handleUnsubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	if err := handler.broadcaster.Unsubscribe(ctx, *msg.ListingID, client.id); err != nil {
		return err
	}
	client.untrackSubscription(*msg.ListingID)

	response := NewServerMessage(MessageTypeListingUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Client unsubscribed from listing")
	return client.Send(response)
}

// handlePlaceBid acknowledges an accepted bid to the bidder. Subscribers
// learn about it through the bid_placed broadcast.
func (handler *WsHandler) handlePlaceBid(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	amount, err := msg.Amount()
	if err != nil {
		return err
	}

	b, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		AccountID: client.identity.AccountID,
		ListingID: *msg.ListingID,
		Amount:    amount,
	})
	if err != nil {
		return err
	}

	handler.logger.Info().
		Str("bid_id", b.ID.String()).
		Str("listing_id", b.ListingID.String()).
		Str("bidder", b.BidderUsername).
		Str("amount", b.Amount.String()).
		Msg("Bid placed over WebSocket")

	response := NewServerMessage(MessageTypeBidAccepted)
	response.ListingID = msg.ListingID
	response.Data["bid"] = b
	return client.Send(response)
}

func (handler *WsHandler) handleGetListing(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	l, bids, err := handler.snapshots.Snapshot(ctx, *msg.ListingID)
	if err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.ListingID = msg.ListingID
	response.Data["listing"] = l
	response.Data["bids"] = bids
	response.Data["time_remaining_seconds"] = int64(l.TimeRemaining(time.Now()).Seconds())
	return client.Send(response)
}

func (handler *WsHandler) handleListListings(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	status, err := msg.StatusFilter()
	if err != nil {
		return err
	}

	listings, err := handler.listingService.ListListings(ctx, inbound.ListListingsRequest{
		Status:   status,
		Page:     msg.intField("page", 1),
		PageSize: msg.intField("page_size", 0),
	})
	if err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeListingUpdate)
	response.Data["listings"] = listings
	response.Data["count"] = len(listings)
	return client.Send(response)
}

func (handler *WsHandler) handleBidHistory(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	bids, err := handler.bidService.GetBids(ctx, *msg.ListingID)
	if err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeBidHistory)
	response.ListingID = msg.ListingID
	response.Data["bids"] = bids
	response.Data["count"] = len(bids)
	return client.Send(response)
}
