package auth

import "sync"

const defaultHubBuffer = 16

// Hub fans provider events out to subscribers in emission order.
type Hub struct {
	emitMu sync.Mutex // one Emit at a time

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	buffer int
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[int]*subscriber),
		buffer: defaultHubBuffer,
	}
}

func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		ch:   make(chan Event, h.buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.ch, unsubscribe
}

// Emit delivers ev to every subscriber. It blocks while a subscriber's buffer is full,
// unless that subscriber unsubscribes.
func (h *Hub) Emit(ev Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
