package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"unimarket/clients/go/market"
)

const (
	BaseURL   = "http://localhost:8080"
	PairCount = 50 // buyer/seller pairs; start small, the database chokes before the hub does
	MsgCount  = 20 // messages per user
)

func main() {
	log.Printf("starting load test: %d pairs, %d messages each...", PairCount, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

// runPair: the seller lists a product, the buyer opens a chat on it, then
// both sides spam the chat over the realtime channel.
func runPair(pairID int) {
	ctx := context.Background()

	seller, err := authenticate(ctx, fmt.Sprintf("seller_%d@columbia.edu", pairID))
	if err != nil {
		log.Printf("seller %d auth failed: %v", pairID, err)
		return
	}
	buyer, err := authenticate(ctx, fmt.Sprintf("buyer_%d@columbia.edu", pairID))
	if err != nil {
		log.Printf("buyer %d auth failed: %v", pairID, err)
		return
	}

	product, err := seller.CreateProduct(ctx, &market.Product{
		Name:      fmt.Sprintf("Load Test Lamp %d", pairID),
		Details:   "Barely used desk lamp.",
		Price:     15,
		Condition: "Good condition",
		Category:  "Dorm & Apartment Essentials",
	})
	if err != nil {
		log.Printf("pair %d create product failed: %v", pairID, err)
		return
	}

	chat, err := buyer.StartChat(ctx, product.ID)
	if err != nil {
		log.Printf("pair %d start chat failed: %v", pairID, err)
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, buyer, chat.ID)
	go spamChat(&wsWg, seller, chat.ID)
	wsWg.Wait()
}

// authenticate runs the full email-code flow. Requires the server to run in
// development mode so the code is echoed back.
func authenticate(ctx context.Context, email string) (*market.Client, error) {
	c := market.NewClient(BaseURL)

	code, err := c.RequestCode(ctx, email)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("server did not echo the code; run it with ENV=development")
	}

	if err := c.Login(ctx, email, code); err != nil {
		return nil, err
	}
	return c, nil
}

func spamChat(wg *sync.WaitGroup, c *market.Client, chatID int) {
	defer wg.Done()

	sock, err := c.Dial(context.Background())
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", c.Email, err)
		return
	}
	defer sock.Close()

	if err := sock.Join(chatID); err != nil {
		log.Printf("join failed [%s]: %v", c.Email, err)
		return
	}

	// Drain broadcasts so the read side keeps up.
	go func() {
		for range sock.Events {
		}
	}()

	for i := 0; i < MsgCount; i++ {
		if err := sock.Send(chatID, fmt.Sprintf("load test msg %d from %s", i, c.Email)); err != nil {
			log.Printf("send failed [%s]: %v", c.Email, err)
			break
		}
		// Small sleep to prevent an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d msgs", c.Email, MsgCount)
}
