package web

import (
	"encoding/json"
	"sync"
	"time"
)

// Event kinds published when the camera collection changes.
const (
	EventSaved    = "saved"
	EventDeleted  = "deleted"
	EventMoved    = "moved"
	EventSelected = "selected"
)

// ChangeEvent describes one mutation of the camera store for SSE clients.
type ChangeEvent struct {
	Time       string `json:"t"`
	Kind       string `json:"kind"`
	Identifier *int   `json:"identifier,omitempty"`
	Msg        string `json:"msg,omitempty"`
}

// ChangeBroadcaster distributes change events to multiple SSE clients.
type ChangeBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewChangeBroadcaster creates a new broadcaster.
func NewChangeBroadcaster() *ChangeBroadcaster {
	return &ChangeBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives events and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *ChangeBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish sends an event to all subscribed clients as JSON:
// {"t":"...","kind":"saved","identifier":3,"msg":"..."}
// Slow clients may miss events (non-blocking, buffered).
func (b *ChangeBroadcaster) Publish(kind string, identifier *int, msg string) {
	evt := ChangeEvent{
		Time:       time.Now().Format(time.RFC3339),
		Kind:       kind,
		Identifier: identifier,
		Msg:        msg,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Subscribers returns the number of connected clients.
func (b *ChangeBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
