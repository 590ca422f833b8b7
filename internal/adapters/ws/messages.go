package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypePlaceBid     MessageType = "place_bid"
	MessageTypeGetListing   MessageType = "get_listing"
	MessageTypeListListings MessageType = "list_listings"
	MessageTypeBidHistory   MessageType = "bid_history"
	MessageTypePing         MessageType = "ping"

	// Server to Client message types
	MessageTypeBidPlaced      MessageType = "bid_placed"
	MessageTypeBidAccepted    MessageType = "bid_accepted"
	MessageTypeListingClosed  MessageType = "listing_closed"
	MessageTypeListingUpdate  MessageType = "listing_update"
	MessageTypeListingCreated MessageType = "listing_created"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorMessage reports err with its error code. A rejected bid also
// carries the highest bid it failed to beat.
func NewErrorMessage(err error, listingID *uuid.UUID) *ServerMessage {
	text := err.Error()
	msg := &ServerMessage{
		Type:      MessageTypeError,
		ListingID: listingID,
		Error:     &text,
		Code:      shared.ErrorCode(err),
		Timestamp: time.Now().Unix(),
	}

	var tooLow *shared.BidTooLowError
	if errors.As(err, &tooLow) {
		msg.Data = map[string]interface{}{"current_highest": tooLow.CurrentHighest}
	}
	return msg
}

func (m *ClientMessage) validateListingID() error {
	if m.ListingID == nil || *m.ListingID == uuid.Nil {
		return shared.ErrListingIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse client message: %v", shared.ErrInvalidRequest, err)
	}

	// Validate required fields
	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetListing, MessageTypeBidHistory:
		return m.validateListingID()
	case MessageTypePlaceBid:
		if err := m.validateListingID(); err != nil {
			return err
		}
		if _, err := m.Amount(); err != nil {
			return err
		}
	case MessageTypeListListings:
		if _, err := m.StatusFilter(); err != nil {
			return err
		}
	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

// Amount reads data.amount, given either as a JSON number or a decimal string
func (m *ClientMessage) Amount() (money.Amount, error) {
	switch v := m.Data["amount"].(type) {
	case float64:
		return money.FromDecimal(decimal.NewFromFloat(v))
	case string:
		return money.Parse(v)
	default:
		return 0, fmt.Errorf("%w: amount is required", shared.ErrInvalidAmount)
	}
}

// StatusFilter reads the optional data.status of a list_listings message
func (m *ClientMessage) StatusFilter() (*listing.Status, error) {
	raw, ok := m.Data["status"].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	status := listing.Status(raw)
	if status != listing.StatusActive && status != listing.StatusClosed {
		return nil, fmt.Errorf("%w: unknown listing status %q", shared.ErrInvalidRequest, raw)
	}
	return &status, nil
}

// intField reads a numeric data field, falling back to def
func (m *ClientMessage) intField(key string, def int) int {
	if v, ok := m.Data[key].(float64); ok {
		return int(v)
	}
	return def
}
