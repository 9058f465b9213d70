package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unimarket/internal/metrics"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.
)

// Client is a middleman between one websocket connection and the hub. The
// authenticated identity is pinned at upgrade time and reused for the whole
// connection; chat participancy is NOT pinned and gets re-checked on every
// join and every send.
type Client struct {
	hub   *Hub
	store *MessageStore
	conn  *websocket.Conn
	log   zerolog.Logger

	// Buffered channel of outbound messages.
	send chan []byte

	userID int
	email  string
}

// readPump pumps events from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Int("user_id", c.userID).Str("email", c.email).Msg("websocket closed")
			}
			break
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.emitError("malformed event")
			continue
		}
		c.handleEvent(&ev)
	}
}

// handleEvent runs one inbound event to completion. Application-level
// failures are reported back on this connection only and never tear it down.
func (c *Client) handleEvent(ev *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch ev.Type {
	case EventJoinChat:
		if ev.ChatID == 0 {
			c.emitError("chat_id is required")
			return
		}
		ok, err := c.store.IsParticipant(ctx, ev.ChatID, c.userID)
		if err != nil {
			c.emitError("chat not found")
			return
		}
		if !ok {
			c.emitError("unauthorized to join this chat")
			return
		}
		c.hub.Join(c, ev.ChatID)

	case EventLeaveChat:
		if ev.ChatID == 0 {
			c.emitError("chat_id is required")
			return
		}
		c.hub.Leave(c, ev.ChatID)

	case EventSendMessage:
		if ev.ChatID == 0 || ev.Body == "" {
			c.emitError("chat_id and message are required")
			return
		}
		msg, err := c.store.Append(ctx, ev.ChatID, c.userID, ev.Body)
		if err != nil {
			c.emitError(sendErrorText(err))
			return
		}
		metrics.MessagesSent.WithLabelValues("ws").Inc()
		c.hub.Broadcast(ctx, msg)

	default:
		c.emitError("unknown event type")
	}
}

// emitError queues an error event for this connection only. If the outbound
// buffer is full the event is dropped along with the connection's other
// pending traffic.
func (c *Client) emitError(text string) {
	payload, _ := json.Marshal(&Event{Type: EventError, Error: text})
	select {
	case c.send <- payload:
	default:
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func sendErrorText(err error) string {
	switch err {
	case ErrChatNotFound:
		return "chat not found"
	case ErrForbidden:
		return "unauthorized to send messages in this chat"
	case ErrEmptyMessage:
		return "message body is empty"
	default:
		return "failed to send message"
	}
}
