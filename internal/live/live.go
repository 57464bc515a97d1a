package live

import (
	"sync"
	"time"
)

// Collection names the five document sets clients can watch.
type Collection string

const (
	Categories Collection = "categories"
	Products   Collection = "products"
	Sales      Collection = "sales"
	Receipts   Collection = "receipts"
	Config     Collection = "config"
)

// Event describes one committed change to a collection. Consumers re-read
// the collection on receipt; the event itself carries no document body.
type Event struct {
	Collection Collection `json:"collection"`
	Action     string     `json:"action"`
	EntityID   string     `json:"entityId,omitempty"`
	At         time.Time  `json:"at"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionReset   = "reset"
)

type subscriber struct {
	collection Collection // empty means all collections
	ch         chan Event
}

// Hub is an in-process change feed. The write paths publish after every
// committed mutation; dashboards and the SSE endpoint subscribe. Slow
// subscribers drop events rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers onChange for events on the given collection (empty
// collection watches everything) and returns an unsubscribe handle. The
// callback runs on a dedicated goroutine in publish order.
func (h *Hub) Subscribe(collection Collection, onChange func(Event)) (unsubscribe func()) {
	ch, cancel := h.Watch(collection, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			onChange(ev)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Watch is the channel form of Subscribe. The channel closes on unsubscribe
// or hub shutdown.
func (h *Hub) Watch(collection Collection, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{collection: collection, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Publish fans the event out to matching subscribers. A subscriber whose
// buffer is full misses the event; it will catch up on its next re-read.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if sub.collection != "" && sub.collection != ev.Collection {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close terminates all subscriptions. Further Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
