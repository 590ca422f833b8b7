package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heritage-auction-service/internal/adapters/auth"
	"heritage-auction-service/internal/adapters/broadcaster"
	"heritage-auction-service/internal/adapters/memory"
	"heritage-auction-service/internal/app"
	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type wsEnv struct {
	server     *httptest.Server
	handler    *WsHandler
	services   *app.Services
	listing    *listing.Listing
	adminID    uuid.UUID
	buyerToken string
}

func newWsEnv(t *testing.T) *wsEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	tokens, err := auth.NewTokenManager(auth.TokenManagerParams{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)

	store := memory.NewStore(memory.StoreParams{Logger: logger})
	bc := broadcaster.NewLocalBroadcaster(broadcaster.LocalBroadcasterParams{Logger: logger})
	services := app.NewServices(app.ServicesParams{
		Repositories: store,
		Broadcaster:  bc,
		Hasher:       auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:       tokens,
		Logger:       logger,
	})

	admin, err := services.Accounts.CreateAdmin(ctx, "admin", "Temple Admin", "9999999999", "admin")
	require.NoError(t, err)
	buyer, err := services.Accounts.Register(ctx, inbound.RegisterRequest{
		FullName: "Rohan Sharma", Username: "rohan", Password: "rohan123", Mobile: "8888888888",
	})
	require.NoError(t, err)
	_, err = services.Accounts.Review(ctx, inbound.ReviewRequest{AdminID: admin.ID, AccountID: buyer.ID, Decision: account.DecisionApprove})
	require.NoError(t, err)
	login, err := services.Accounts.Login(ctx, inbound.LoginRequest{Username: "rohan", Password: "rohan123"})
	require.NoError(t, err)

	l, err := services.Listings.CreateListing(ctx, inbound.CreateListingRequest{
		ActorID:   admin.ID,
		Title:     "Bronze Nataraja",
		BasePrice: money.FromMajor(5000),
		Duration:  time.Hour,
	})
	require.NoError(t, err)

	handler := NewHandler(WsHandlerParams{
		Tokens:         tokens,
		ListingService: services.Listings,
		BidService:     services.Engine,
		Snapshots:      services.Engine,
		Broadcaster:    bc,
		Logger:         logger,
	})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return &wsEnv{
		server:     server,
		handler:    handler,
		services:   services,
		listing:    l,
		adminID:    admin.ID,
		buyerToken: login.Token,
	}
}

func (e *wsEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Type      MessageType            `json:"type"`
	ListingID string                 `json:"listing_id"`
	Data      map[string]interface{} `json:"data"`
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
}

// readUntil skips messages until one of type want arrives
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHandleWebSocket_RejectsMissingOrBadToken(t *testing.T) {
	env := newWsEnv(t)
	base := "ws" + strings.TrimPrefix(env.server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	send(t, conn, map[string]interface{}{"type": "ping"})
	readUntil(t, conn, MessageTypePong)
}

func TestWebSocket_SubscribeAndBid(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)
	listingID := env.listing.ID.String()

	send(t, conn, map[string]interface{}{"type": "subscribe", "listing_id": listingID})
	subscribed := readUntil(t, conn, MessageTypeListingUpdate)
	require.Equal(t, "subscribed", subscribed.Data["status"])
	require.Equal(t, 1, env.handler.GetConnectedClients())

	send(t, conn, map[string]interface{}{
		"type":       "place_bid",
		"listing_id": listingID,
		"data":       map[string]interface{}{"amount": "5500"},
	})

	placed := readUntil(t, conn, MessageTypeBidPlaced)
	require.Equal(t, listingID, placed.ListingID)
	require.Equal(t, "5500.00", placed.Data["amount"])
	require.Equal(t, "rohan", placed.Data["bidder_username"])

	l, err := env.services.Listings.GetListing(context.Background(), env.listing.ID)
	require.NoError(t, err)
	require.Equal(t, money.FromMajor(5500), l.CurrentHighest)
}

func TestWebSocket_ListingCreatedReachesConnectedClients(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	// the pong proves the connection finished setting up
	send(t, conn, map[string]interface{}{"type": "ping"})
	readUntil(t, conn, MessageTypePong)

	created, err := env.services.Listings.CreateListing(context.Background(), inbound.CreateListingRequest{
		ActorID:   env.adminID,
		Title:     "Sandalwood Mala",
		BasePrice: money.FromMajor(12000),
		Duration:  48 * time.Hour,
	})
	require.NoError(t, err)

	msg := readUntil(t, conn, MessageTypeListingCreated)
	require.Equal(t, created.ID.String(), msg.ListingID)
	require.Equal(t, "Sandalwood Mala", msg.Data["title"])
	require.Equal(t, "12000.00", msg.Data["base_price"])
}

func TestWebSocket_BidTooLowReportsCurrentHighest(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	send(t, conn, map[string]interface{}{
		"type":       "place_bid",
		"listing_id": env.listing.ID.String(),
		"data":       map[string]interface{}{"amount": 4000},
	})

	msg := readUntil(t, conn, MessageTypeError)
	require.Equal(t, shared.CodeBidTooLow, msg.Code)
	require.Equal(t, "5000.00", msg.Data["current_highest"])
}

func TestWebSocket_NonPositiveBidIsTooLow(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	for _, amount := range []interface{}{0, "-1"} {
		send(t, conn, map[string]interface{}{
			"type":       "place_bid",
			"listing_id": env.listing.ID.String(),
			"data":       map[string]interface{}{"amount": amount},
		})

		msg := readUntil(t, conn, MessageTypeError)
		require.Equal(t, shared.CodeBidTooLow, msg.Code, "amount %v", amount)
		require.Equal(t, "5000.00", msg.Data["current_highest"])
	}
}

func TestWebSocket_ErrorsCarryCodes(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	send(t, conn, map[string]interface{}{"type": "create_auction"})
	msg := readUntil(t, conn, MessageTypeError)
	require.Equal(t, shared.CodeInvalidRequest, msg.Code)

	send(t, conn, map[string]interface{}{"type": "get_listing", "listing_id": "7b0c1c2e-9d3c-4a55-9f5e-0a1b2c3d4e5f"})
	msg = readUntil(t, conn, MessageTypeError)
	require.Equal(t, shared.CodeNotFound, msg.Code)
}

func TestWebSocket_GetListingAndHistory(t *testing.T) {
	env := newWsEnv(t)
	ctx := context.Background()
	conn := env.dial(t, env.buyerToken)

	buyer, err := env.services.Accounts.Login(ctx, inbound.LoginRequest{Username: "rohan", Password: "rohan123"})
	require.NoError(t, err)
	_, err = env.services.Engine.PlaceBid(ctx, inbound.PlaceBidRequest{
		AccountID: buyer.Account.ID, ListingID: env.listing.ID, Amount: money.FromMajor(6000),
	})
	require.NoError(t, err)

	send(t, conn, map[string]interface{}{"type": "get_listing", "listing_id": env.listing.ID.String()})
	snapshot := readUntil(t, conn, MessageTypeListingUpdate)
	l := snapshot.Data["listing"].(map[string]interface{})
	require.Equal(t, "6000.00", l["current_highest"])
	require.Len(t, snapshot.Data["bids"], 1)

	send(t, conn, map[string]interface{}{"type": "bid_history", "listing_id": env.listing.ID.String()})
	history := readUntil(t, conn, MessageTypeBidHistory)
	require.EqualValues(t, 1, history.Data["count"])

	send(t, conn, map[string]interface{}{"type": "list_listings", "data": map[string]interface{}{"status": "active"}})
	listings := readUntil(t, conn, MessageTypeListingUpdate)
	require.EqualValues(t, 1, listings.Data["count"])
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	env := newWsEnv(t)
	conn := env.dial(t, env.buyerToken)

	send(t, conn, map[string]interface{}{"type": "subscribe", "listing_id": env.listing.ID.String()})
	readUntil(t, conn, MessageTypeListingUpdate)
	require.Equal(t, 1, env.handler.GetConnectedClients())

	conn.Close()

	require.Eventually(t, func() bool {
		return env.handler.GetConnectedClients() == 0
	}, 5*time.Second, 20*time.Millisecond)

	// A publish after disconnect must not block or panic
	_, err := env.services.Listings.Close(context.Background(), env.listing.ID)
	require.NoError(t, err)
}
