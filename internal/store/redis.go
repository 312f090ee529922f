package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot reads: single offers, a user's production entries, and
// the latest clearing price. Writes go to the primary store and invalidate
// the affected keys; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func offerKey(id string) string { return fmt.Sprintf("offer:%s", id) }

func entriesKey(ownerID string) string { return fmt.Sprintf("entries:%s", ownerID) }

const latestPriceKey = "price:latest"

// --- Cached reads ---

func (s *CachedStore) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	data, err := s.rdb.Get(ctx, offerKey(id)).Bytes()
	if err == nil {
		var o model.Offer
		if json.Unmarshal(data, &o) == nil {
			return &o, nil
		}
	}

	o, err := s.primary.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(o); err == nil {
		s.rdb.Set(ctx, offerKey(id), data, s.ttl)
	}
	return o, nil
}

func (s *CachedStore) EntriesFor(ctx context.Context, ownerID string) ([]model.ProductionEntry, error) {
	data, err := s.rdb.Get(ctx, entriesKey(ownerID)).Bytes()
	if err == nil {
		var entries []model.ProductionEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.EntriesFor(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, entriesKey(ownerID), data, s.ttl)
	}
	return entries, nil
}

func (s *CachedStore) LatestPrice(ctx context.Context) (*model.ClearingPrice, error) {
	data, err := s.rdb.Get(ctx, latestPriceKey).Bytes()
	if err == nil {
		var p model.ClearingPrice
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.LatestPrice(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, latestPriceKey, data, s.ttl)
	}
	return p, nil
}

// --- Invalidating writes ---

func (s *CachedStore) InsertEntry(ctx context.Context, e *model.ProductionEntry) error {
	if err := s.primary.InsertEntry(ctx, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, entriesKey(e.OwnerID))
	return nil
}

func (s *CachedStore) UpdateEntryReadings(ctx context.Context, id string, produced, consumed decimal.Decimal) error {
	e, err := s.primary.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.primary.UpdateEntryReadings(ctx, id, produced, consumed); err != nil {
		return err
	}
	s.rdb.Del(ctx, entriesKey(e.OwnerID))
	return nil
}

func (s *CachedStore) SoftDeleteEntry(ctx context.Context, id string, at time.Time) error {
	// Resolve the owner before the row disappears from live reads.
	e, err := s.primary.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.primary.SoftDeleteEntry(ctx, id, at); err != nil {
		return err
	}
	s.rdb.Del(ctx, entriesKey(e.OwnerID))
	return nil
}

func (s *CachedStore) InsertPrice(ctx context.Context, p *model.ClearingPrice) error {
	if err := s.primary.InsertPrice(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, latestPriceKey)
	return nil
}

func (s *CachedStore) UpdatePrice(ctx context.Context, p *model.ClearingPrice) error {
	if err := s.primary.UpdatePrice(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, latestPriceKey)
	return nil
}

func (s *CachedStore) SoftDeletePrice(ctx context.Context, id string, at time.Time) error {
	if err := s.primary.SoftDeletePrice(ctx, id, at); err != nil {
		return err
	}
	s.rdb.Del(ctx, latestPriceKey)
	return nil
}

// Commit applies the change set on the primary then invalidates every key
// it may have staled: each touched offer and each touched owner's entries.
func (s *CachedStore) Commit(ctx context.Context, cs *ChangeSet) error {
	if err := s.primary.Commit(ctx, cs); err != nil {
		return err
	}
	if cs == nil {
		return nil
	}

	keys := make([]string, 0, len(cs.Offers)+len(cs.Entries))
	for i := range cs.Offers {
		keys = append(keys, offerKey(cs.Offers[i].ID))
	}
	owners := make(map[string]struct{})
	for i := range cs.Entries {
		owners[cs.Entries[i].OwnerID] = struct{}{}
	}
	for owner := range owners {
		keys = append(keys, entriesKey(owner))
	}
	if len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.primary.GetUser(ctx, id)
}

func (s *CachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.primary.GetUserByEmail(ctx, email)
}

func (s *CachedStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.primary.ListUsers(ctx)
}

func (s *CachedStore) GetEntry(ctx context.Context, id string) (*model.ProductionEntry, error) {
	return s.primary.GetEntry(ctx, id)
}

func (s *CachedStore) ListOffers(ctx context.Context, f OfferFilter) ([]model.Offer, error) {
	return s.primary.ListOffers(ctx, f)
}

func (s *CachedStore) AvailableOffers(ctx context.Context) ([]model.Offer, error) {
	return s.primary.AvailableOffers(ctx)
}

func (s *CachedStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.primary.GetOrder(ctx, id)
}

func (s *CachedStore) OrdersForBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return s.primary.OrdersForBuyer(ctx, buyerID)
}

func (s *CachedStore) SoftDeleteOrder(ctx context.Context, id string, at time.Time) error {
	return s.primary.SoftDeleteOrder(ctx, id, at)
}

func (s *CachedStore) GetPrice(ctx context.Context, id string) (*model.ClearingPrice, error) {
	return s.primary.GetPrice(ctx, id)
}

func (s *CachedStore) ListPrices(ctx context.Context) ([]model.ClearingPrice, error) {
	return s.primary.ListPrices(ctx)
}
