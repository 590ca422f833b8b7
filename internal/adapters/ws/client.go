package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"heritage-auction-service/internal/ports/inbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var errServerBusy = errors.New("server busy, message dropped")

const (
	sendBufferSize = 100
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type WsClient struct {
	id         string
	identity   inbound.Identity
	conn       *websocket.Conn
	sendChan   chan *ServerMessage
	ctx        context.Context
	cancel     context.CancelFunc
	handler    *WsHandler
	workerPool *pond.WorkerPool
	stopped    bool
	mu         sync.Mutex

	subsMu        sync.Mutex
	subscriptions map[uuid.UUID]struct{}

	logger zerolog.Logger
}

type WsClientParams struct {
	Identity    inbound.Identity
	Conn        *websocket.Conn
	Handler     *WsHandler
	MaxWorkers  int
	MaxCapacity int
	Logger      zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		params.MaxWorkers,
		params.MaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)
	id := uuid.New().String()
	return &WsClient{
		id:            id,
		identity:      params.Identity,
		conn:          params.Conn,
		sendChan:      make(chan *ServerMessage, sendBufferSize),
		ctx:           ctx,
		cancel:        cancel,
		handler:       params.Handler,
		workerPool:    pool,
		subscriptions: make(map[uuid.UUID]struct{}),
		logger: params.Logger.With().
			Str("client_id", id).
			Str("account_id", params.Identity.AccountID.String()).
			Logger(),
	}
}

func (c *WsClient) Start() {
	go c.messageSender()
	go c.messageReceiver()
}

// Stop closes the connection. sendChan is left open; the sender exits on
// ctx cancellation, so a late Send can never hit a closed channel.
func (client *WsClient) Stop() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.stopped {
		return
	}
	client.stopped = true

	client.cancel()
	client.conn.Close()

	if client.workerPool != nil {
		client.workerPool.Stop()
	}
}

// Send queues a message for the client
func (client *WsClient) Send(msg *ServerMessage) error {
	client.mu.Lock()
	if client.stopped {
		client.mu.Unlock()
		return fmt.Errorf("client is stopped")
	}
	client.mu.Unlock()

	select {
	case client.sendChan <- msg:
		return nil
	default:
		// Channel is full, try to send with a timeout
		select {
		case client.sendChan <- msg:
			return nil
		case <-client.ctx.Done():
			return fmt.Errorf("client is stopped")
		case <-time.After(100 * time.Millisecond):
			return fmt.Errorf("client send channel is full")
		}
	}
}

// messageSender is the only goroutine that writes to the connection
func (client *WsClient) messageSender() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.sendChan:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send message to client")
				client.cancel()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.logger.Debug().Err(err).Msg("Ping to client failed")
				client.cancel()
				return
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (client *WsClient) messageReceiver() {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Error().Err(err).Msg("WebSocket read error for client")
			} else {
				client.logger.Info().Str("error", err.Error()).Msg("WebSocket connection closed for client")
			}
			// Cancel context to notify handler about disconnection
			client.cancel()
			return
		}
		client.logger.Debug().Str("message", string(message)).Msg("Message received from client")

		accepted, ok := client.submit(message)
		if !ok {
			return
		}
		if !accepted {
			client.logger.Warn().Msg("Worker pool full, dropping client message")
			client.reportError(errServerBusy, nil)
		}
	}
}

// submit hands a message to the worker pool without blocking. ok is false
// once the client is stopping; the check shares mu with Stop so a stopped
// pool is never submitted to.
func (client *WsClient) submit(message []byte) (accepted, ok bool) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.stopped {
		return false, false
	}
	return client.workerPool.TrySubmit(func() {
		client.process(message)
	}), true
}

func (client *WsClient) process(data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		client.reportError(err, nil)
		return
	}
	if err := client.handleMessage(msg); err != nil {
		client.reportError(err, msg.ListingID)
	}
}

func (client *WsClient) reportError(err error, listingID *uuid.UUID) {
	client.logger.Debug().Err(err).Msg("Client message failed")
	if sendErr := client.Send(NewErrorMessage(err, listingID)); sendErr != nil {
		client.logger.Warn().Err(sendErr).Msg("Failed to report error to client")
	}
}

func (client *WsClient) handleMessage(msg *ClientMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if msg.Type == MessageTypePing {
		return client.Send(NewServerMessage(MessageTypePong))
	}

	if client.handler != nil {
		return client.handler.HandleClientMessage(client.ctx, client, msg)
	}
	return fmt.Errorf("handler not available")
}

func (client *WsClient) trackSubscription(listingID uuid.UUID) {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()
	client.subscriptions[listingID] = struct{}{}
}

func (client *WsClient) untrackSubscription(listingID uuid.UUID) {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()
	delete(client.subscriptions, listingID)
}

// drainSubscriptions returns and forgets every listing the client follows
func (client *WsClient) drainSubscriptions() []uuid.UUID {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	ids := make([]uuid.UUID, 0, len(client.subscriptions))
	for id := range client.subscriptions {
		ids = append(ids, id)
	}
	client.subscriptions = make(map[uuid.UUID]struct{})
	return ids
}
