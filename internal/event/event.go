// Package event defines the domain events emitted by the marketplace engine
// and the collector interface external observers implement. The engine never
// talks to metrics or sockets directly; collectors are injected and the bus
// fans events out to them.
package event

import (
	"sync"
	"time"
)

// Type identifies a domain event.
type Type string

const (
	OfferCreated     Type = "offer_created"
	OfferResized     Type = "offer_resized"
	OfferDeleted     Type = "offer_deleted"
	OrderCreated     Type = "order_created"
	MarketSimulated  Type = "market_simulated"
	AllocationFailed Type = "allocation_failed"
)

// Event is one domain occurrence. Amounts are decimal strings so the JSON
// form is stable across collectors.
type Event struct {
	Type      Type      `json:"type"`
	At        time.Time `json:"at"`
	UserID    string    `json:"user_id,omitempty"`
	OfferID   string    `json:"offer_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	AmountKwh string    `json:"amount_kwh,omitempty"`
	Price     string    `json:"price,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Collector receives every published event. Implementations must not block;
// slow consumers should buffer internally.
type Collector interface {
	Collect(Event)
}

// Bus fans events out to subscribed collectors. A nil *Bus is valid and
// drops everything, so library code can publish unconditionally.
type Bus struct {
	mu         sync.RWMutex
	collectors []Collector
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a collector for all future events.
func (b *Bus) Subscribe(c Collector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collectors = append(b.collectors, c)
}

// Publish delivers the event to every collector, stamping At if unset.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.collectors {
		c.Collect(e)
	}
}
