// Package events broadcasts query state transitions to stream subscribers
// and retains a bounded backlog for clients that resume with Last-Event-ID.
package events

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const subscriberBuffer = 64

// Event is one published query transition. Seq increases by one per publish.
type Event struct {
	Seq   uint64     `json:"seq"`
	Type  string     `json:"type"`
	At    time.Time  `json:"at"`
	Query QueryEvent `json:"query"`
}

type Hub struct {
	mu      sync.Mutex
	seq     uint64
	limit   int
	backlog []Event
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// NewHub returns a hub that keeps the last backlog events for replay.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = 256
	}
	return &Hub{
		limit: backlog,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Publish assigns the next sequence number to q and delivers it without
// blocking; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(q QueryEvent) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := Event{Seq: h.seq, Type: TypeForState(q.State), At: time.Now().UTC(), Query: q}

	h.backlog = append(h.backlog, ev)
	if over := len(h.backlog) - h.limit; over > 0 {
		h.backlog = h.backlog[over:]
	}

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	return ev
}

// Replay returns retained events with Seq greater than after, oldest first.
func (h *Hub) Replay(after uint64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := sort.Search(len(h.backlog), func(i int) bool { return h.backlog[i].Seq > after })
	return slices.Clone(h.backlog[i:])
}

// Subscribe registers a live subscription. Callers must Close it.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Subscription is a live feed from a Hub.
type Subscription struct {
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
