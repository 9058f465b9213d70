// Package market provides a Go client for the marketplace API: REST access,
// the realtime chat channel, and optimistic message reconciliation.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a marketplace API client. Token is set by Login and attached to
// every subsequent request.
type Client struct {
	BaseURL    string
	Token      string
	UserID     int
	Email      string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Mirrors of the server's wire types.

type Product struct {
	ID          int       `json:"id"`
	SellerID    int       `json:"seller_id"`
	SellerEmail string    `json:"seller_email,omitempty"`
	Name        string    `json:"name"`
	Details     string    `json:"details"`
	Price       float64   `json:"price"`
	Condition   string    `json:"condition"`
	Category    string    `json:"category"`
	ImagePath   string    `json:"image_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Chat struct {
	ID           int       `json:"id"`
	ProductID    int       `json:"product_id"`
	BuyerID      int       `json:"buyer_id"`
	SellerID     int       `json:"seller_id"`
	CreatedAt    time.Time `json:"created_at"`
	ProductName  string    `json:"product_name,omitempty"`
	ProductPrice float64   `json:"product_price,omitempty"`
	BuyerEmail   string    `json:"buyer_email,omitempty"`
	SellerEmail  string    `json:"seller_email,omitempty"`
}

type Message struct {
	ID          int       `json:"id"`
	ChatID      int       `json:"chat_id"`
	SenderID    int       `json:"sender_id"`
	SenderEmail string    `json:"sender_email,omitempty"`
	Body        string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is the realtime channel envelope.
type Event struct {
	Type    string   `json:"type"`
	ChatID  int      `json:"chat_id,omitempty"`
	Body    string   `json:"message,omitempty"`
	Message *Message `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// RequestCode asks the server to mail a verification code. The returned code
// is only populated when the server runs in development echo mode.
func (c *Client) RequestCode(ctx context.Context, email string) (string, error) {
	var resp struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/verify-email",
		map[string]string{"email": email}, &resp)
	return resp.Code, err
}

// Login exchanges a verification code for a bearer token and binds the
// authenticated identity to the client.
func (c *Client) Login(ctx context.Context, email, code string) error {
	var resp struct {
		Token  string `json:"token"`
		UserID int    `json:"userId"`
		Email  string `json:"email"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/verify-code",
		map[string]string{"email": email, "code": code}, &resp)
	if err != nil {
		return err
	}
	c.Token = resp.Token
	c.UserID = resp.UserID
	c.Email = resp.Email
	return nil
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &products)
	return products, err
}

func (c *Client) Product(ctx context.Context, id int) (*Product, error) {
	p := &Product{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, p)
	return p, err
}

func (c *Client) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	created := &Product{}
	err := c.do(ctx, http.MethodPost, "/api/products", p, created)
	return created, err
}

// StartChat finds or creates the caller's chat for a product. The seller is
// derived server-side from the listing.
func (c *Client) StartChat(ctx context.Context, productID int) (*Chat, error) {
	chat := &Chat{}
	err := c.do(ctx, http.MethodPost, "/api/chats",
		map[string]int{"product_id": productID}, chat)
	return chat, err
}

func (c *Client) Chats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	err := c.do(ctx, http.MethodGet, "/api/chats", nil, &chats)
	return chats, err
}

func (c *Client) Chat(ctx context.Context, id int) (*Chat, error) {
	chat := &Chat{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d", id), nil, chat)
	return chat, err
}

func (c *Client) Messages(ctx context.Context, chatID int) ([]Message, error) {
	var messages []Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chatID), nil, &messages)
	return messages, err
}

// SendMessage submits a message over the request/response path and returns
// the authoritative message with its server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, chatID int, text string) (*Message, error) {
	msg := &Message{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chatID),
		map[string]string{"message": text}, msg)
	return msg, err
}

// Socket is an open realtime connection. Events carries new_message and
// error events until the connection closes.
type Socket struct {
	conn   *websocket.Conn
	Events chan Event
}

// Dial opens the realtime channel, authenticating with the client's token.
func (c *Client) Dial(ctx context.Context) (*Socket, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "token=" + url.QueryEscape(c.Token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &Socket{conn: conn, Events: make(chan Event, 64)}
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	defer close(s.Events)
	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		s.Events <- ev
	}
}

func (s *Socket) Join(chatID int) error {
	return s.conn.WriteJSON(Event{Type: "join_chat", ChatID: chatID})
}

func (s *Socket) Leave(chatID int) error {
	return s.conn.WriteJSON(Event{Type: "leave_chat", ChatID: chatID})
}

// Send submits a message over the realtime channel instead of REST. The
// created message comes back as a new_message broadcast.
func (s *Socket) Send(chatID int, text string) error {
	return s.conn.WriteJSON(Event{Type: "send_message", ChatID: chatID, Body: text})
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
