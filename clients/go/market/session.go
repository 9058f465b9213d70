package market

import (
	"context"
	"sync"
)

// ChatSession ties one chat's timeline to the client: REST submits with
// optimistic staging, broadcast merging, and composer restoration when a
// submit fails.
type ChatSession struct {
	client *Client
	chatID int

	Timeline *Timeline

	mu    sync.Mutex
	draft string
}

// OpenChat loads the chat's history into a fresh session.
func (c *Client) OpenChat(ctx context.Context, chatID int) (*ChatSession, error) {
	history, err := c.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s := &ChatSession{client: c, chatID: chatID, Timeline: NewTimeline()}
	s.Timeline.Load(history)
	return s, nil
}

// Send stages the text optimistically, submits it over REST and reconciles
// the result. On failure the provisional entry is removed and the text is
// restored as the draft instead of being silently dropped.
func (s *ChatSession) Send(ctx context.Context, text string) (*Message, error) {
	tempID := s.Timeline.Stage(s.client.UserID, text)

	msg, err := s.client.SendMessage(ctx, s.chatID, text)
	if err != nil {
		if body, ok := s.Timeline.Fail(tempID); ok {
			s.mu.Lock()
			s.draft = body
			s.mu.Unlock()
		}
		return nil, err
	}

	s.Timeline.Confirm(tempID, *msg)
	return msg, nil
}

// Apply feeds a realtime event into the session. Events for other chats are
// ignored.
func (s *ChatSession) Apply(ev Event) {
	if ev.Type != "new_message" || ev.Message == nil || ev.Message.ChatID != s.chatID {
		return
	}
	s.Timeline.Merge(*ev.Message)
}

// Draft returns and clears text restored by a failed send.
func (s *ChatSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	s.draft = ""
	return d
}
