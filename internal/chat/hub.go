package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"unimarket/internal/metrics"
)

// Hub owns the chat room state: which live connections are subscribed to
// which chat. All mutation goes through its channels and happens on the Run
// goroutine, so room membership is safe with respect to concurrent broadcast
// iteration without locks.
type Hub struct {
	// rooms maps a chat id to its current subscriber set; joined is the
	// reverse index used to clean up on disconnect.
	rooms  map[int]map[*Client]bool
	joined map[*Client]map[int]bool

	clients map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	join       chan subscription
	leave      chan subscription
	deliver    chan delivery

	broker Broker
	log    zerolog.Logger
}

type subscription struct {
	client *Client
	chatID int
}

type delivery struct {
	chatID  int
	payload []byte
}

func NewHub(broker Broker, log zerolog.Logger) *Hub {
	h := &Hub{
		rooms:      make(map[int]map[*Client]bool),
		joined:     make(map[*Client]map[int]bool),
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		deliver:    make(chan delivery),
		broker:     broker,
		log:        log,
	}
	broker.Subscribe(h.Deliver)
	return h
}

// Run is the loop that manages room state. It is the only goroutine that
// touches h.rooms.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true

		case client := <-h.Unregister:
			h.dropClient(client)

		case sub := <-h.join:
			if !h.clients[sub.client] {
				break
			}
			if h.rooms[sub.chatID] == nil {
				h.rooms[sub.chatID] = make(map[*Client]bool)
			}
			h.rooms[sub.chatID][sub.client] = true
			if h.joined[sub.client] == nil {
				h.joined[sub.client] = make(map[int]bool)
			}
			h.joined[sub.client][sub.chatID] = true

		case sub := <-h.leave:
			h.removeFromRoom(sub.client, sub.chatID)

		case d := <-h.deliver:
			for client := range h.rooms[d.chatID] {
				select {
				case client.send <- d.payload:
					metrics.BroadcastsDelivered.Inc()
				default:
					// Slow consumer: drop the connection entirely.
					h.dropClient(client)
				}
			}
		}
	}
}

// Join subscribes a connection to a chat room. Participancy must already be
// validated by the caller; the hub does pure bookkeeping.
func (h *Hub) Join(client *Client, chatID int) {
	h.join <- subscription{client: client, chatID: chatID}
}

// Leave is idempotent.
func (h *Hub) Leave(client *Client, chatID int) {
	h.leave <- subscription{client: client, chatID: chatID}
}

// Broadcast publishes a freshly appended message to every connection in the
// chat's room, across all server instances. Best effort: no acks, no retry.
func (h *Hub) Broadcast(ctx context.Context, msg *Message) {
	payload, err := json.Marshal(&Event{Type: EventNewMessage, ChatID: msg.ChatID, Message: msg})
	if err != nil {
		h.log.Error().Err(err).Int("chat_id", msg.ChatID).Msg("marshal broadcast")
		return
	}
	if err := h.broker.Publish(ctx, msg.ChatID, payload); err != nil {
		h.log.Error().Err(err).Int("chat_id", msg.ChatID).Msg("publish broadcast")
	}
}

// Deliver hands a payload from the broker to the room's local subscribers.
func (h *Hub) Deliver(chatID int, payload []byte) {
	h.deliver <- delivery{chatID: chatID, payload: payload}
}

func (h *Hub) removeFromRoom(client *Client, chatID int) {
	if room, ok := h.rooms[chatID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if chats, ok := h.joined[client]; ok {
		delete(chats, chatID)
	}
}

func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	for chatID := range h.joined[client] {
		h.removeFromRoom(client, chatID)
	}
	delete(h.joined, client)
	delete(h.clients, client)
	close(client.send)
}
