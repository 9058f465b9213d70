package market

import (
	"sync"

	"github.com/google/uuid"
)

// EntryState tracks one message through the reconciliation state machine:
// Pending until the authoritative message (submit response or matching
// broadcast) arrives, then Confirmed; a failed submit removes the entry.
type EntryState int

const (
	StatePending EntryState = iota
	StateConfirmed
)

// Entry is one slot in the visible message sequence. Pending entries carry a
// temporary id and the staged body; confirmed entries carry the
// authoritative message.
type Entry struct {
	TempID  string
	State   EntryState
	Message Message
}

// Timeline presents a duplicate-free message sequence even though messages
// arrive on two independent paths: the response to our own submit, and the
// room broadcast. Merging is idempotent on the server-assigned message id.
type Timeline struct {
	mu      sync.Mutex
	entries []*Entry
	seen    map[int]bool      // confirmed message ids present
	pending map[string]*Entry // temp id -> pending entry
}

func NewTimeline() *Timeline {
	return &Timeline{
		seen:    make(map[int]bool),
		pending: make(map[string]*Entry),
	}
}

// Load seeds the timeline from a full history fetch. Already-present ids are
// skipped so Load can also be used to catch up after a reconnect.
func (t *Timeline) Load(messages []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range messages {
		if t.seen[m.ID] {
			continue
		}
		t.seen[m.ID] = true
		t.entries = append(t.entries, &Entry{State: StateConfirmed, Message: m})
	}
}

// Stage inserts a provisional entry for a message the user just submitted
// and returns its temporary id.
func (t *Timeline) Stage(senderID int, body string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &Entry{
		TempID:  uuid.NewString(),
		State:   StatePending,
		Message: Message{SenderID: senderID, Body: body},
	}
	t.entries = append(t.entries, e)
	t.pending[e.TempID] = e
	return e.TempID
}

// Confirm replaces the provisional entry with the authoritative message from
// the submit response. If a broadcast already confirmed the entry this is a
// no-op.
func (t *Timeline) Confirm(tempID string, msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[tempID]
	if !ok {
		// Already confirmed via broadcast, or failed out.
		return
	}
	delete(t.pending, tempID)
	e.State = StateConfirmed
	e.Message = msg
	e.TempID = ""
	t.seen[msg.ID] = true
}

// Merge applies a broadcast message. Returns false when the message was
// discarded as a duplicate. A broadcast of our own in-flight submit (same
// sender and body) confirms the pending entry in place instead of appending.
func (t *Timeline) Merge(msg Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[msg.ID] {
		return false
	}

	for _, e := range t.entries {
		if e.State == StatePending && e.Message.SenderID == msg.SenderID && e.Message.Body == msg.Body {
			delete(t.pending, e.TempID)
			e.State = StateConfirmed
			e.Message = msg
			e.TempID = ""
			t.seen[msg.ID] = true
			return true
		}
	}

	t.seen[msg.ID] = true
	t.entries = append(t.entries, &Entry{State: StateConfirmed, Message: msg})
	return true
}

// Fail removes a provisional entry whose submit never completed and returns
// the staged text so the caller can restore it to the composer.
func (t *Timeline) Fail(tempID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[tempID]
	if !ok {
		return "", false
	}
	delete(t.pending, tempID)

	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	return e.Message.Body, true
}

// Entries returns a snapshot of the visible sequence in display order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// PendingCount reports how many entries still await confirmation.
func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
