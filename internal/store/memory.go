package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
//
// Entries, offers, and orders are kept in insertion order so creation-order
// iteration is stable without timestamps resolving ties.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []model.User
	entries  []model.ProductionEntry
	entryIdx map[string]int
	offers   []model.Offer
	offerIdx map[string]int
	orders   []model.Order
	orderIdx map[string]int
	prices   []model.ClearingPrice
	priceIdx map[string]int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entryIdx: make(map[string]int),
		offerIdx: make(map[string]int),
		orderIdx: make(map[string]int),
		priceIdx: make(map[string]int),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].DeletedAt == nil && strings.EqualFold(s.users[i].Email, u.Email) {
			return ErrConflict
		}
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].ID == id && s.users[i].DeletedAt == nil {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].DeletedAt == nil && strings.EqualFold(s.users[i].Email, email) {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for i := range s.users {
		if s.users[i].DeletedAt == nil {
			users = append(users, s.users[i])
		}
	}
	return users, nil
}

// --- Production entries ---

func (s *MemoryStore) InsertEntry(_ context.Context, e *model.ProductionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entryIdx[e.ID]; ok {
		return ErrConflict
	}
	s.entryIdx[e.ID] = len(s.entries)
	s.entries = append(s.entries, *e)
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id string) (*model.ProductionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.entryIdx[id]
	if !ok || s.entries[i].DeletedAt != nil {
		return nil, ErrNotFound
	}
	e := s.entries[i]
	return &e, nil
}

func (s *MemoryStore) EntriesFor(_ context.Context, ownerID string) ([]model.ProductionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.ProductionEntry
	for i := range s.entries {
		if s.entries[i].OwnerID == ownerID && s.entries[i].DeletedAt == nil {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}

func (s *MemoryStore) UpdateEntryReadings(_ context.Context, id string, produced, consumed decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.entryIdx[id]
	if !ok || s.entries[i].DeletedAt != nil {
		return ErrNotFound
	}
	s.entries[i].ProducedKwh = produced
	s.entries[i].ConsumedKwh = consumed
	return nil
}

func (s *MemoryStore) SoftDeleteEntry(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.entryIdx[id]
	if !ok || s.entries[i].DeletedAt != nil {
		return ErrNotFound
	}
	s.entries[i].DeletedAt = &at
	return nil
}

// --- Offers ---

func (s *MemoryStore) GetOffer(_ context.Context, id string) (*model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.offerIdx[id]
	if !ok || s.offers[i].DeletedAt != nil {
		return nil, ErrNotFound
	}
	o := s.offers[i]
	return &o, nil
}

func (s *MemoryStore) ListOffers(_ context.Context, f OfferFilter) ([]model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []model.Offer
	for i := range s.offers {
		o := &s.offers[i]
		if o.DeletedAt != nil {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.SellerID != "" && o.SellerID != f.SellerID {
			continue
		}
		offers = append(offers, *o)
	}
	return offers, nil
}

func (s *MemoryStore) AvailableOffers(ctx context.Context) ([]model.Offer, error) {
	return s.ListOffers(ctx, OfferFilter{Status: model.OfferAvailable})
}

// --- Orders ---

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.orderIdx[id]
	if !ok || s.orders[i].DeletedAt != nil {
		return nil, ErrNotFound
	}
	o := s.orders[i]
	return &o, nil
}

func (s *MemoryStore) OrdersForBuyer(_ context.Context, buyerID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for i := range s.orders {
		if s.orders[i].BuyerID == buyerID && s.orders[i].DeletedAt == nil {
			orders = append(orders, s.orders[i])
		}
	}
	return orders, nil
}

func (s *MemoryStore) SoftDeleteOrder(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.orderIdx[id]
	if !ok || s.orders[i].DeletedAt != nil {
		return ErrNotFound
	}
	s.orders[i].DeletedAt = &at
	return nil
}

// --- Clearing prices ---

func (s *MemoryStore) InsertPrice(_ context.Context, p *model.ClearingPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.priceIdx[p.ID]; ok {
		return ErrConflict
	}
	s.priceIdx[p.ID] = len(s.prices)
	s.prices = append(s.prices, *p)
	return nil
}

func (s *MemoryStore) GetPrice(_ context.Context, id string) (*model.ClearingPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.priceIdx[id]
	if !ok || s.prices[i].DeletedAt != nil {
		return nil, ErrNotFound
	}
	p := s.prices[i]
	return &p, nil
}

func (s *MemoryStore) ListPrices(_ context.Context) ([]model.ClearingPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var prices []model.ClearingPrice
	for i := range s.prices {
		if s.prices[i].DeletedAt == nil {
			prices = append(prices, s.prices[i])
		}
	}
	// Ascending price_time, matching the Postgres ORDER BY.
	for i := 1; i < len(prices); i++ {
		for j := i; j > 0 && prices[j].PriceTime.Before(prices[j-1].PriceTime); j-- {
			prices[j], prices[j-1] = prices[j-1], prices[j]
		}
	}
	return prices, nil
}

func (s *MemoryStore) UpdatePrice(_ context.Context, p *model.ClearingPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.priceIdx[p.ID]
	if !ok || s.prices[i].DeletedAt != nil {
		return ErrNotFound
	}
	s.prices[i].ProviderName = p.ProviderName
	s.prices[i].PriceKwh = p.PriceKwh
	s.prices[i].PriceTime = p.PriceTime
	return nil
}

func (s *MemoryStore) SoftDeletePrice(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.priceIdx[id]
	if !ok || s.prices[i].DeletedAt != nil {
		return ErrNotFound
	}
	s.prices[i].DeletedAt = &at
	return nil
}

func (s *MemoryStore) LatestPrice(_ context.Context) (*model.ClearingPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.ClearingPrice
	for i := range s.prices {
		p := &s.prices[i]
		if p.DeletedAt != nil {
			continue
		}
		if latest == nil || p.PriceTime.After(latest.PriceTime) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	p := *latest
	return &p, nil
}

// --- Atomic commit ---

// Commit applies the change set under one lock: entries and offers are
// upserted by ID, orders inserted. All referenced IDs are resolved before
// anything is written, so a bad set leaves the store untouched.
func (s *MemoryStore) Commit(_ context.Context, cs *ChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate first: entry updates must reference existing rows.
	for i := range cs.Entries {
		if _, ok := s.entryIdx[cs.Entries[i].ID]; !ok {
			return ErrNotFound
		}
	}

	for i := range cs.Entries {
		s.entries[s.entryIdx[cs.Entries[i].ID]] = cs.Entries[i]
	}
	for i := range cs.Offers {
		if j, ok := s.offerIdx[cs.Offers[i].ID]; ok {
			s.offers[j] = cs.Offers[i]
		} else {
			s.offerIdx[cs.Offers[i].ID] = len(s.offers)
			s.offers = append(s.offers, cs.Offers[i])
		}
	}
	for i := range cs.Orders {
		if j, ok := s.orderIdx[cs.Orders[i].ID]; ok {
			s.orders[j] = cs.Orders[i]
		} else {
			s.orderIdx[cs.Orders[i].ID] = len(s.orders)
			s.orders = append(s.orders, cs.Orders[i])
		}
	}
	return nil
}
