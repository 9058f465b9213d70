package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"unimarket/internal/middleware"
)

// ChatDirectory methods for fakeRepo (the MessageRepo half lives in
// store_test.go).

func (f *fakeRepo) addProduct(productID, sellerID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[productID] = sellerID
}

func (f *fakeRepo) FindOrCreate(_ context.Context, productID, buyerID int) (*Chat, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sellerID, ok := f.products[productID]
	if !ok {
		return nil, false, ErrProductNotFound
	}
	if sellerID == buyerID {
		return nil, false, ErrSelfChat
	}

	for _, c := range f.chats {
		if c.ProductID == productID && c.BuyerID == buyerID {
			return c, false, nil
		}
	}

	f.nextChat++
	c := &Chat{ID: f.nextChat, ProductID: productID, BuyerID: buyerID, SellerID: sellerID}
	f.chats[c.ID] = c
	return c, true, nil
}

func (f *fakeRepo) ChatsForUser(_ context.Context, userID int) ([]*Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Chat
	for _, c := range f.chats {
		if c.BuyerID == userID || c.SellerID == userID {
			out = append(out, c)
		}
	}
	// Newest first, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRepo) ChatByID(_ context.Context, chatID int) (*Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return c, nil
}

func newTestRouter(repo *fakeRepo) (*chi.Mux, *Hub) {
	store := NewMessageStore(repo)
	hub := NewHub(NewLoopbackBroker(), zerolog.Nop())
	go hub.Run()
	h := NewHandler(repo, store, hub, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/api/chats", h.StartChat)
	r.Get("/api/chats", h.ListChats)
	r.Get("/api/chats/{id}", h.GetChat)
	r.Get("/api/chats/{id}/messages", h.GetMessages)
	r.Post("/api/chats/{id}/messages", h.SendMessage)
	return r, hub
}

func doRequest(r http.Handler, method, path string, userID int, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != 0 {
		ctx := context.WithValue(req.Context(), middleware.UserKey, userID)
		ctx = context.WithValue(ctx, middleware.EmailKey, "user@columbia.edu")
		req = req.WithContext(ctx)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartChat_IdempotentPerProductBuyer(t *testing.T) {
	repo := newFakeRepo()
	repo.addProduct(5, 20) // seller 20
	router, _ := newTestRouter(repo)

	w1 := doRequest(router, http.MethodPost, "/api/chats", 10, `{"product_id": 5}`)
	if w1.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d: %s", w1.Code, w1.Body)
	}
	var first Chat
	json.NewDecoder(w1.Body).Decode(&first)
	if first.SellerID != 20 || first.BuyerID != 10 {
		t.Fatalf("wrong participants: %+v", first)
	}

	w2 := doRequest(router, http.MethodPost, "/api/chats", 10, `{"product_id": 5}`)
	if w2.Code != http.StatusOK {
		t.Fatalf("second create: expected 200, got %d", w2.Code)
	}
	var second Chat
	json.NewDecoder(w2.Body).Decode(&second)
	if second.ID != first.ID {
		t.Fatalf("expected same chat id, got %d and %d", first.ID, second.ID)
	}
}

func TestStartChat_DerivesSellerFromProduct(t *testing.T) {
	repo := newFakeRepo()
	repo.addProduct(5, 20)
	router, _ := newTestRouter(repo)

	// A spoofed seller_id in the body must be ignored.
	w := doRequest(router, http.MethodPost, "/api/chats", 10, `{"product_id": 5, "seller_id": 99}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var c Chat
	json.NewDecoder(w.Body).Decode(&c)
	if c.SellerID != 20 {
		t.Fatalf("seller must come from the product row, got %d", c.SellerID)
	}
}

func TestStartChat_Rejections(t *testing.T) {
	repo := newFakeRepo()
	repo.addProduct(5, 20)
	router, _ := newTestRouter(repo)

	tests := []struct {
		name   string
		userID int
		body   string
		want   int
	}{
		{"missing product id", 10, `{}`, http.StatusBadRequest},
		{"unknown product", 10, `{"product_id": 404}`, http.StatusNotFound},
		{"own listing", 20, `{"product_id": 5}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		if w := doRequest(router, http.MethodPost, "/api/chats", tc.userID, tc.body); w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestChatAccess_ForbiddenForOutsiders(t *testing.T) {
	repo := newFakeRepo()
	repo.addChat(5, 10, 20)
	router, _ := newTestRouter(repo)

	const outsider = 99
	if w := doRequest(router, http.MethodGet, "/api/chats/1", outsider, ""); w.Code != http.StatusForbidden {
		t.Errorf("get chat: expected 403, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/api/chats/1/messages", outsider, ""); w.Code != http.StatusForbidden {
		t.Errorf("list messages: expected 403, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/chats/1/messages", outsider, `{"message": "hi"}`); w.Code != http.StatusForbidden {
		t.Errorf("send message: expected 403, got %d", w.Code)
	}
}

func TestSendMessage_EmptyBodyRejected(t *testing.T) {
	repo := newFakeRepo()
	c := repo.addChat(5, 10, 20)
	router, _ := newTestRouter(repo)

	w := doRequest(router, http.MethodPost, "/api/chats/1/messages", 10, `{"message": "  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	msgs, _ := repo.MessagesByChat(context.Background(), c.ID)
	if len(msgs) != 0 {
		t.Fatalf("rejected message must not persist, found %d rows", len(msgs))
	}
}

func TestSendMessage_PersistsAndBroadcasts(t *testing.T) {
	repo := newFakeRepo()
	chatRow := repo.addChat(5, 10, 20)
	router, hub := newTestRouter(repo)

	seller := newTestClient()
	hub.Register <- seller
	hub.Join(seller, chatRow.ID)

	w := doRequest(router, http.MethodPost, "/api/chats/1/messages", 10, `{"message": "Is this available?"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var created Message
	json.NewDecoder(w.Body).Decode(&created)
	if created.ID == 0 || created.Body != "Is this available?" {
		t.Fatalf("unexpected response message: %+v", created)
	}

	ev := recvEvent(t, seller)
	if ev.Type != EventNewMessage || ev.Message.ID != created.ID {
		t.Fatalf("broadcast mismatch: %+v", ev)
	}

	// History includes it exactly once, oldest first.
	wl := doRequest(router, http.MethodGet, "/api/chats/1/messages", 20, "")
	var history []Message
	json.NewDecoder(wl.Body).Decode(&history)
	if len(history) != 1 || history[0].ID != created.ID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestChatEndpoints_NotFound(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	if w := doRequest(router, http.MethodGet, "/api/chats/42", 10, ""); w.Code != http.StatusNotFound {
		t.Errorf("get chat: expected 404, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/api/chats/42/messages", 10, ""); w.Code != http.StatusNotFound {
		t.Errorf("messages: expected 404, got %d", w.Code)
	}
}
