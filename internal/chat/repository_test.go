package chat

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"unimarket/internal/db"
)

// Integration test against a real Postgres. Requires TEST_DB_DSN set
// externally; skipped otherwise.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping integration test")
	}

	database, err := db.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	defer database.Conn.Close()
	if err := database.AutoMigrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	ctx := context.Background()
	suffix := time.Now().UnixNano()

	var buyerID, sellerID, productID int
	if err := database.Conn.QueryRowContext(ctx,
		"INSERT INTO users (email, email_verified) VALUES ($1, TRUE) RETURNING id",
		fmt.Sprintf("buyer%d@columbia.edu", suffix)).Scan(&buyerID); err != nil {
		t.Fatalf("insert buyer: %v", err)
	}
	if err := database.Conn.QueryRowContext(ctx,
		"INSERT INTO users (email, email_verified) VALUES ($1, TRUE) RETURNING id",
		fmt.Sprintf("seller%d@columbia.edu", suffix)).Scan(&sellerID); err != nil {
		t.Fatalf("insert seller: %v", err)
	}
	if err := database.Conn.QueryRowContext(ctx,
		`INSERT INTO products (seller_id, name, details, price, condition, category)
		 VALUES ($1, 'Desk Lamp', 'Works fine.', 12.50, 'Good condition', 'Dorm & Apartment Essentials')
		 RETURNING id`, sellerID).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewRepository(database.Conn)

	c1, created, err := repo.FindOrCreate(ctx, productID, buyerID)
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	if !created || c1.SellerID != sellerID {
		t.Fatalf("unexpected chat: created=%v %+v", created, c1)
	}

	c2, created, err := repo.FindOrCreate(ctx, productID, buyerID)
	if err != nil {
		t.Fatalf("second FindOrCreate failed: %v", err)
	}
	if created || c2.ID != c1.ID {
		t.Fatalf("expected same chat back, created=%v ids %d/%d", created, c1.ID, c2.ID)
	}

	if _, _, err := repo.FindOrCreate(ctx, productID, sellerID); err != ErrSelfChat {
		t.Fatalf("expected ErrSelfChat, got %v", err)
	}

	store := NewMessageStore(repo)
	if _, err := store.Append(ctx, c1.ID, buyerID, "Is this available?"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := store.Append(ctx, c1.ID, sellerID, "Yes, still here."); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	msgs, err := store.ListByChat(ctx, c1.ID, buyerID)
	if err != nil {
		t.Fatalf("ListByChat failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].CreatedAt.Before(msgs[0].CreatedAt) {
		t.Fatal("messages out of order")
	}
	if msgs[0].SenderEmail == "" {
		t.Fatal("sender email not joined")
	}

	// A second chat started later must list first for the buyer.
	var productID2 int
	if err := database.Conn.QueryRowContext(ctx,
		`INSERT INTO products (seller_id, name, details, price, condition, category)
		 VALUES ($1, 'Mini Fridge', 'Barely used.', 45.00, 'Like new', 'Dorm & Apartment Essentials')
		 RETURNING id`, sellerID).Scan(&productID2); err != nil {
		t.Fatalf("insert second product: %v", err)
	}
	c3, _, err := repo.FindOrCreate(ctx, productID2, buyerID)
	if err != nil {
		t.Fatalf("second chat FindOrCreate failed: %v", err)
	}

	chats, err := repo.ChatsForUser(ctx, buyerID)
	if err != nil {
		t.Fatalf("ChatsForUser failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != c3.ID || chats[1].ID != c1.ID {
		t.Fatalf("chats not newest first: got %d, %d", chats[0].ID, chats[1].ID)
	}
}
