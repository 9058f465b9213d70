package chat

import (
	"context"
	"database/sql"
	"errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the chat for (productID, buyerID), creating it on
// first contact. The seller is always derived from the product row; a
// client-supplied seller id is never trusted. Returns whether the chat was
// newly created.
func (r *Repository) FindOrCreate(ctx context.Context, productID, buyerID int) (*Chat, bool, error) {
	var sellerID int
	err := r.db.QueryRowContext(ctx,
		"SELECT seller_id FROM products WHERE id = $1", productID).Scan(&sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrProductNotFound
		}
		return nil, false, err
	}

	if sellerID == buyerID {
		return nil, false, ErrSelfChat
	}

	c := &Chat{ProductID: productID, BuyerID: buyerID, SellerID: sellerID}

	// Insert-then-select handles two buyers racing on the same pair: the
	// unique constraint makes one insert a no-op and both land on one row.
	insert := `
		INSERT INTO chats (product_id, buyer_id, seller_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, buyer_id) DO NOTHING
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, insert, productID, buyerID, sellerID).
		Scan(&c.ID, &c.CreatedAt)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM chats WHERE product_id = $1 AND buyer_id = $2",
		productID, buyerID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return c, false, nil
}

// ChatsForUser lists the chats the user participates in, newest first, with
// the product and participant emails joined in.
func (r *Repository) ChatsForUser(ctx context.Context, userID int) ([]*Chat, error) {
	query := `
		SELECT c.id, c.product_id, c.buyer_id, c.seller_id, c.created_at,
		       p.name, p.price, b.email, s.email
		FROM chats c
		JOIN products p ON c.product_id = p.id
		JOIN users b ON c.buyer_id = b.id
		JOIN users s ON c.seller_id = s.id
		WHERE c.buyer_id = $1 OR c.seller_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c := &Chat{}
		if err := rows.Scan(&c.ID, &c.ProductID, &c.BuyerID, &c.SellerID, &c.CreatedAt,
			&c.ProductName, &c.ProductPrice, &c.BuyerEmail, &c.SellerEmail); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ChatByID loads one chat with joined display fields.
func (r *Repository) ChatByID(ctx context.Context, chatID int) (*Chat, error) {
	c := &Chat{}
	query := `
		SELECT c.id, c.product_id, c.buyer_id, c.seller_id, c.created_at,
		       p.name, p.price, b.email, s.email
		FROM chats c
		JOIN products p ON c.product_id = p.id
		JOIN users b ON c.buyer_id = b.id
		JOIN users s ON c.seller_id = s.id
		WHERE c.id = $1
	`
	err := r.db.QueryRowContext(ctx, query, chatID).
		Scan(&c.ID, &c.ProductID, &c.BuyerID, &c.SellerID, &c.CreatedAt,
			&c.ProductName, &c.ProductPrice, &c.BuyerEmail, &c.SellerEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return c, nil
}

// Participants returns the buyer and seller ids of a chat.
func (r *Repository) Participants(ctx context.Context, chatID int) (int, int, error) {
	var buyerID, sellerID int
	err := r.db.QueryRowContext(ctx,
		"SELECT buyer_id, seller_id FROM chats WHERE id = $1", chatID).
		Scan(&buyerID, &sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrChatNotFound
		}
		return 0, 0, err
	}
	return buyerID, sellerID, nil
}

// InsertMessage appends one message row. The database assigns id and
// created_at; the sender email is joined back for the response payload.
func (r *Repository) InsertMessage(ctx context.Context, chatID, senderID int, body string) (*Message, error) {
	m := &Message{ChatID: chatID, SenderID: senderID, Body: body}
	query := `
		WITH inserted AS (
			INSERT INTO messages (chat_id, sender_id, message)
			VALUES ($1, $2, $3)
			RETURNING id, sender_id, created_at
		)
		SELECT i.id, i.created_at, u.email
		FROM inserted i
		JOIN users u ON i.sender_id = u.id
	`
	err := r.db.QueryRowContext(ctx, query, chatID, senderID, body).
		Scan(&m.ID, &m.CreatedAt, &m.SenderEmail)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MessagesByChat returns the full message log, oldest first.
func (r *Repository) MessagesByChat(ctx context.Context, chatID int) ([]*Message, error) {
	query := `
		SELECT m.id, m.chat_id, m.sender_id, u.email, m.message, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderEmail, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
