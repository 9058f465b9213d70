package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unimarket/internal/metrics"
	"unimarket/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// ChatDirectory is the slice of Repository the handler needs for chat-level
// reads. Split out as an interface so handler tests run on a fake.
type ChatDirectory interface {
	FindOrCreate(ctx context.Context, productID, buyerID int) (*Chat, bool, error)
	ChatsForUser(ctx context.Context, userID int) ([]*Chat, error)
	ChatByID(ctx context.Context, chatID int) (*Chat, error)
}

type Handler struct {
	dir   ChatDirectory
	store *MessageStore
	hub   *Hub
	log   zerolog.Logger
}

func NewHandler(dir ChatDirectory, store *MessageStore, hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{dir: dir, store: store, hub: hub, log: log}
}

type startChatRequest struct {
	ProductID int `json:"product_id"`
	// SellerID is accepted for wire compatibility but deliberately ignored;
	// the seller is always derived from the product row.
	SellerID int `json:"seller_id"`
}

type sendMessageRequest struct {
	Body string `json:"message"`
}

// StartChat finds or creates the caller's chat for a product. Idempotent on
// (product, buyer): 200 with the existing chat, 201 when newly created.
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := identity(w, r)
	if !ok {
		return
	}

	var req startChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == 0 {
		http.Error(w, "Product ID is required", http.StatusBadRequest)
		return
	}

	c, created, err := h.dir.FindOrCreate(r.Context(), req.ProductID, buyerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			http.Error(w, "product not found", http.StatusNotFound)
		case errors.Is(err, ErrSelfChat):
			http.Error(w, "Cannot create chat with yourself", http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Msg("start chat")
			http.Error(w, "failed to create chat", http.StatusInternalServerError)
		}
		return
	}

	if created {
		metrics.ChatsCreated.Inc()
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(c)
}

// ListChats returns the caller's chats, newest first.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	chats, err := h.dir.ChatsForUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list chats")
		http.Error(w, "failed to fetch chats", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []*Chat{}
	}

	json.NewEncoder(w).Encode(chats)
}

// GetChat returns one chat; participants only.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	c, err := h.dir.ChatByID(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			http.Error(w, "chat not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("get chat")
		http.Error(w, "failed to fetch chat", http.StatusInternalServerError)
		return
	}

	if c.BuyerID != userID && c.SellerID != userID {
		http.Error(w, "Unauthorized access to chat", http.StatusForbidden)
		return
	}

	json.NewEncoder(w).Encode(c)
}

// GetMessages returns the chat's full log, oldest first; participants only.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	messages, err := h.store.ListByChat(r.Context(), chatID, userID)
	if err != nil {
		h.writeStoreError(w, err, "fetch messages")
		return
	}
	if messages == nil {
		messages = []*Message{}
	}

	json.NewEncoder(w).Encode(messages)
}

// SendMessage appends a message over the request/response path and triggers
// the room broadcast.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.store.Append(r.Context(), chatID, userID, req.Body)
	if err != nil {
		h.writeStoreError(w, err, "send message")
		return
	}

	metrics.MessagesSent.WithLabelValues("rest").Inc()
	h.hub.Broadcast(r.Context(), msg)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// ServeWS upgrades the connection and starts the session pumps. The token
// was already validated by the auth middleware; the resolved identity rides
// on the request context.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h.hub,
		store:  h.store,
		conn:   conn,
		log:    h.log,
		send:   make(chan []byte, 256),
		userID: userID,
		email:  email,
	}
	h.hub.Register <- client
	metrics.WSConnections.Inc()

	go client.writePump()
	go client.readPump()
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrChatNotFound):
		http.Error(w, "chat not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "Unauthorized access to chat", http.StatusForbidden)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "message body is empty", http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(op)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func identity(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, _, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
