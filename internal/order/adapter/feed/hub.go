package feed

import (
	"sync"
	"time"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

// Scope selects which mutations a subscriber observes: every order of
// one vendor relation, or a single order. Exactly one field is set.
type Scope struct {
	VendorRelationID string
	OrderID          string
}

func (s Scope) matches(o models.Order) bool {
	if s.OrderID != "" {
		return o.OrderID == s.OrderID
	}
	return s.VendorRelationID != "" && o.VendorRelationID == s.VendorRelationID
}

// Hub fans committed order mutations out to in-process subscribers.
// Delivery is at-least-once and ordered per order; a subscriber that
// cannot keep up is closed and must reconnect for a fresh snapshot.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	mylog  logger.Logger
}

func NewHub(mylog logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: core.SubscriberBuffer,
		mylog:  mylog,
	}
}

// Subscribe registers interest in a scope. Mutations published between
// Subscribe and Prime are buffered, so the caller can fetch the current
// full state from the store without missing concurrent updates.
func (h *Hub) Subscribe(scope Scope) *Subscription {
	sub := &Subscription{
		hub:      h,
		scope:    scope,
		lastSeen: make(map[string]time.Time),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers a committed mutation to every matching subscriber.
func (h *Hub) Publish(order models.Order) {
	h.mu.RLock()
	matching := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		if sub.scope.matches(order) {
			matching = append(matching, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range matching {
		sub.deliver(order)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

type Subscription struct {
	hub   *Hub
	scope Scope

	mu      sync.Mutex
	ch      chan models.Order
	primed  bool
	closed  bool
	pending []models.Order
	// lastSeen enforces per-order ordering: an update is dropped if the
	// subscriber already saw a state at least as new for that order.
	lastSeen map[string]time.Time
}

// Prime delivers the initial full-state snapshot and opens the stream.
// Updates buffered since Subscribe are replayed afterwards; anything
// the snapshot already covers is dropped by the per-order recency check.
func (s *Subscription) Prime(initial []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.ch = make(chan models.Order, len(initial)+s.hub.buffer)
	for _, o := range initial {
		s.lastSeen[o.OrderID] = o.UpdatedAt
		s.ch <- o
	}
	for _, o := range s.pending {
		if s.newerLocked(o) {
			s.lastSeen[o.OrderID] = o.UpdatedAt
			s.ch <- o
		}
	}
	s.pending = nil
	s.primed = true
}

// C is the subscriber's stream. Valid after Prime; closed when the
// subscription ends.
func (s *Subscription) C() <-chan models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
	s.mu.Unlock()

	s.hub.remove(s)
}

func (s *Subscription) deliver(order models.Order) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if !s.primed {
		s.pending = append(s.pending, order)
		s.mu.Unlock()
		return
	}

	if !s.newerLocked(order) {
		s.mu.Unlock()
		return
	}

	select {
	case s.ch <- order:
		s.lastSeen[order.OrderID] = order.UpdatedAt
		s.mu.Unlock()
	default:
		// Subscriber fell too far behind; drop it rather than block the
		// commit path. Reconnecting re-fetches full state.
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.hub.remove(s)
		s.hub.mylog.Action("subscriber_dropped").
			Warn("Closed slow feed subscriber", "order_id", order.OrderID)
	}
}

func (s *Subscription) newerLocked(o models.Order) bool {
	last, ok := s.lastSeen[o.OrderID]
	return !ok || o.UpdatedAt.After(last)
}
