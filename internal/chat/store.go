package chat

import (
	"context"
	"strings"
)

// MessageRepo is the slice of Repository the store needs. It exists so the
// store (and everything above it) can run against an in-memory double.
type MessageRepo interface {
	Participants(ctx context.Context, chatID int) (buyerID, sellerID int, err error)
	InsertMessage(ctx context.Context, chatID, senderID int, body string) (*Message, error)
	MessagesByChat(ctx context.Context, chatID int) ([]*Message, error)
}

// MessageStore is the durable append-only log of chat messages. Every call
// re-checks chat participancy against the database; membership is never
// cached across calls.
type MessageStore struct {
	repo MessageRepo
}

func NewMessageStore(repo MessageRepo) *MessageStore {
	return &MessageStore{repo: repo}
}

// Append validates and persists one message. The returned message carries
// the server-assigned id and timestamp, which are authoritative for ordering.
func (s *MessageStore) Append(ctx context.Context, chatID, senderID int, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	buyerID, sellerID, err := s.repo.Participants(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if senderID != buyerID && senderID != sellerID {
		return nil, ErrForbidden
	}

	return s.repo.InsertMessage(ctx, chatID, senderID, body)
}

// ListByChat returns the chat's messages oldest first, for participants only.
func (s *MessageStore) ListByChat(ctx context.Context, chatID, requesterID int) ([]*Message, error) {
	buyerID, sellerID, err := s.repo.Participants(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if requesterID != buyerID && requesterID != sellerID {
		return nil, ErrForbidden
	}

	return s.repo.MessagesByChat(ctx, chatID)
}

// IsParticipant reports whether the user may read and write the chat.
func (s *MessageStore) IsParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	buyerID, sellerID, err := s.repo.Participants(ctx, chatID)
	if err != nil {
		return false, err
	}
	return userID == buyerID || userID == sellerID, nil
}
