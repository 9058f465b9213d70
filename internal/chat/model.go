package chat

import (
	"errors"
	"time"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrProductNotFound = errors.New("product not found")
	ErrForbidden       = errors.New("not a chat participant")
	ErrEmptyMessage    = errors.New("message body is empty")
	ErrSelfChat        = errors.New("cannot open a chat on your own listing")
)

// Chat ties one product to one buyer and the product's seller. At most one
// chat exists per (product, buyer) pair.
type Chat struct {
	ID        int       `json:"id"`
	ProductID int       `json:"product_id"`
	BuyerID   int       `json:"buyer_id"`
	SellerID  int       `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`

	// Joined for display (list/detail responses).
	ProductName  string  `json:"product_name,omitempty"`
	ProductPrice float64 `json:"product_price,omitempty"`
	BuyerEmail   string  `json:"buyer_email,omitempty"`
	SellerEmail  string  `json:"seller_email,omitempty"`
}

// Message is one entry in a chat's append-only log. CreatedAt is assigned by
// the database and is the authoritative ordering key.
type Message struct {
	ID          int       `json:"id"`
	ChatID      int       `json:"chat_id"`
	SenderID    int       `json:"sender_id"`
	SenderEmail string    `json:"sender_email,omitempty"`
	Body        string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// ---------------------------------------------
// Websocket event envelopes
// ---------------------------------------------

// Event is the envelope for everything crossing the realtime channel, both
// directions. Fields are populated per Type.
type Event struct {
	Type    string   `json:"type"`
	ChatID  int      `json:"chat_id,omitempty"`
	Body    string   `json:"message,omitempty"`
	Message *Message `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Inbound event types.
const (
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventSendMessage = "send_message"
)

// Outbound event types.
const (
	EventNewMessage = "new_message"
	EventError      = "error"
)
