// Package market implements the offer/order lifecycle controller and the
// market simulation driver, plus their HTTP handlers.
//
// Every write runs the same shape: check preconditions, run the ledger
// allocation engine on an in-memory view of the seller's entries, re-check
// invariants, then commit entries, offers, and orders as one atomic
// ChangeSet. Any failure before the commit leaves the store untouched.
package market

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/event"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/ledger"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

// Service orchestrates offers, orders, and the market simulation. A mutex
// serializes ledger-affecting operations (single-instance). For horizontal
// scaling, replace with database-level locking per seller account.
type Service struct {
	store           store.Store
	bus             *event.Bus
	systemAccountID string
	mu              sync.Mutex
}

// NewService creates a new market service. systemAccountID names the user
// the market simulation buys through; it may be empty, in which case
// simulation requests fail with ErrNoSystemAccount.
func NewService(st store.Store, bus *event.Bus, systemAccountID string) *Service {
	return &Service{
		store:           st,
		bus:             bus,
		systemAccountID: systemAccountID,
	}
}

// invariantFailure records an allocation that failed after preconditions
// passed. Nothing has been committed; the caller sees a server fault.
func (s *Service) invariantFailure(op, userID string, err error) error {
	slog.Error("allocation failed after preconditions passed", "op", op, "user", userID, "err", err)
	s.bus.Publish(event.Event{
		Type:   event.AllocationFailed,
		UserID: userID,
		Reason: err.Error(),
	})
	return &InvariantError{Op: op, Err: err}
}

// CreateOffer reserves totalKwh from the seller's available surplus and
// creates an available offer for it.
func (s *Service) CreateOffer(ctx context.Context, sellerID string, totalKwh, priceKwh decimal.Decimal) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetUser(ctx, sellerID); err != nil {
		return nil, err
	}

	entries, err := s.store.EntriesFor(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if totalKwh.GreaterThan(ledger.AvailableSurplus(entries)) {
		return nil, ErrInsufficientSurplus
	}

	changed, err := ledger.Allocate(entries, totalKwh, ledger.Reserve)
	if err != nil {
		return nil, s.invariantFailure("create offer", sellerID, err)
	}
	if err := ledger.CheckInvariants(changed); err != nil {
		return nil, s.invariantFailure("create offer", sellerID, err)
	}

	now := time.Now().UTC()
	offer := model.Offer{
		ID:           uuid.New().String(),
		SellerID:     sellerID,
		TotalKwh:     totalKwh,
		RemainingKwh: totalKwh,
		PriceKwh:     priceKwh,
		Status:       model.OfferAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	cs := &store.ChangeSet{Entries: changed, Offers: []model.Offer{offer}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, err
	}

	slog.Info("offer created",
		"offer", offer.ID,
		"seller", sellerID,
		"total_kwh", totalKwh.String(),
		"price_kwh", priceKwh.String(),
	)
	s.bus.Publish(event.Event{
		Type:      event.OfferCreated,
		UserID:    sellerID,
		OfferID:   offer.ID,
		AmountKwh: totalKwh.String(),
		Price:     priceKwh.String(),
	})
	return &offer, nil
}

// ResizeOffer changes an offer's remaining amount, reserving or releasing
// the delta against the seller's ledger. A non-nil newPrice also updates the
// asking price; price changes have no ledger effect.
func (s *Service) ResizeOffer(ctx context.Context, offerID, callerID string, newRemaining decimal.Decimal, newPrice *decimal.Decimal) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SellerID != callerID {
		return nil, ErrForbidden
	}

	entries, err := s.store.EntriesFor(ctx, offer.SellerID)
	if err != nil {
		return nil, err
	}

	delta := newRemaining.Sub(offer.RemainingKwh)
	var changed []model.ProductionEntry
	switch {
	case delta.IsPositive():
		if delta.GreaterThan(ledger.AvailableSurplus(entries)) {
			return nil, ErrInsufficientSurplus
		}
		changed, err = ledger.Allocate(entries, delta, ledger.Reserve)
	case delta.IsNegative():
		// Conservation guarantees the seller holds at least the offer's
		// remaining amount in reservations; a shortfall here is a bug.
		changed, err = ledger.Allocate(entries, delta.Neg(), ledger.Release)
	}
	if err != nil {
		return nil, s.invariantFailure("resize offer", offer.SellerID, err)
	}
	if err := ledger.CheckInvariants(changed); err != nil {
		return nil, s.invariantFailure("resize offer", offer.SellerID, err)
	}

	offer.RemainingKwh = newRemaining
	if newRemaining.IsPositive() {
		offer.Status = model.OfferAvailable
	} else {
		offer.Status = model.OfferUnavailable
	}
	if newPrice != nil {
		offer.PriceKwh = *newPrice
	}
	offer.UpdatedAt = time.Now().UTC()

	cs := &store.ChangeSet{Entries: changed, Offers: []model.Offer{*offer}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, err
	}

	slog.Info("offer resized",
		"offer", offer.ID,
		"seller", offer.SellerID,
		"remaining_kwh", newRemaining.String(),
		"delta_kwh", delta.String(),
	)
	s.bus.Publish(event.Event{
		Type:      event.OfferResized,
		UserID:    offer.SellerID,
		OfferID:   offer.ID,
		AmountKwh: newRemaining.String(),
		Price:     offer.PriceKwh.String(),
	})
	return offer, nil
}

// DeleteOffer withdraws an offer, releasing its unsold reservation back to
// the seller's available surplus. Energy already sold through the offer
// stays sold.
func (s *Service) DeleteOffer(ctx context.Context, offerID, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.SellerID != callerID {
		return ErrForbidden
	}

	entries, err := s.store.EntriesFor(ctx, offer.SellerID)
	if err != nil {
		return err
	}

	changed, err := ledger.Allocate(entries, offer.RemainingKwh, ledger.Release)
	if err != nil {
		return s.invariantFailure("delete offer", offer.SellerID, err)
	}

	now := time.Now().UTC()
	offer.RemainingKwh = decimal.Zero
	offer.Status = model.OfferUnavailable
	offer.UpdatedAt = now
	offer.DeletedAt = &now

	cs := &store.ChangeSet{Entries: changed, Offers: []model.Offer{*offer}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return err
	}

	slog.Info("offer deleted", "offer", offer.ID, "seller", offer.SellerID)
	s.bus.Publish(event.Event{
		Type:    event.OfferDeleted,
		UserID:  offer.SellerID,
		OfferID: offer.ID,
	})
	return nil
}

// CreateOrder purchases quantityKwh from an offer: the offer's remaining
// amount drops, the seller's reservation converts to a sale, and the order
// is recorded, all in one atomic commit.
func (s *Service) CreateOrder(ctx context.Context, buyerID, offerID string, quantityKwh decimal.Decimal) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetUser(ctx, buyerID); err != nil {
		return nil, err
	}
	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SellerID == buyerID {
		return nil, ErrSelfTrade
	}
	if offer.Status != model.OfferAvailable {
		return nil, ErrOfferUnavailable
	}
	if quantityKwh.GreaterThan(offer.RemainingKwh) {
		return nil, ErrQuantityExceedsOffer
	}

	entries, err := s.store.EntriesFor(ctx, offer.SellerID)
	if err != nil {
		return nil, err
	}

	// The sale draws down the seller's reservation, not the buyer's ledger.
	changed, err := ledger.Allocate(entries, quantityKwh, ledger.Sell)
	if err != nil {
		return nil, s.invariantFailure("create order", offer.SellerID, err)
	}
	if err := ledger.CheckInvariants(changed); err != nil {
		return nil, s.invariantFailure("create order", offer.SellerID, err)
	}

	offer.RemainingKwh = offer.RemainingKwh.Sub(quantityKwh)
	if !offer.RemainingKwh.IsPositive() {
		offer.Status = model.OfferUnavailable
	}
	now := time.Now().UTC()
	offer.UpdatedAt = now

	order := model.Order{
		ID:          uuid.New().String(),
		BuyerID:     buyerID,
		OfferID:     offer.ID,
		QuantityKwh: quantityKwh,
		TotalPrice:  quantityKwh.Mul(offer.PriceKwh).Round(model.AmountScale),
		CreatedAt:   now,
	}

	cs := &store.ChangeSet{
		Entries: changed,
		Offers:  []model.Offer{*offer},
		Orders:  []model.Order{order},
	}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, err
	}

	slog.Info("order created",
		"order", order.ID,
		"buyer", buyerID,
		"offer", offer.ID,
		"quantity_kwh", quantityKwh.String(),
		"total_price", order.TotalPrice.String(),
	)
	s.bus.Publish(event.Event{
		Type:      event.OrderCreated,
		UserID:    buyerID,
		OfferID:   offer.ID,
		OrderID:   order.ID,
		AmountKwh: quantityKwh.String(),
		Price:     offer.PriceKwh.String(),
	})
	return &order, nil
}

// DeleteOrder soft-deletes an order owned by callerID. The seller's ledger
// is deliberately not reversed: sold energy stays sold.
func (s *Service) DeleteOrder(ctx context.Context, orderID, callerID string) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != callerID {
		return ErrForbidden
	}
	return s.store.SoftDeleteOrder(ctx, orderID, time.Now().UTC())
}

// SimulationSummary reports what one market simulation run bought.
type SimulationSummary struct {
	OffersProcessed   int             `json:"offers_processed"`
	TotalPurchasedKwh decimal.Decimal `json:"total_energy_purchased_kwh"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	PriceUsedKwh      decimal.Decimal `json:"provider_price_used"`
}

// Simulate liquidates every available offer at the latest clearing price,
// as if the system account bought everything. The whole batch is one
// ChangeSet: if any single offer's sale fails, no offer is modified.
func (s *Service) Simulate(ctx context.Context) (*SimulationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, err := s.store.LatestPrice(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPrice
		}
		return nil, err
	}

	if s.systemAccountID == "" {
		return nil, ErrNoSystemAccount
	}
	system, err := s.store.GetUser(ctx, s.systemAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSystemAccount
		}
		return nil, err
	}

	offers, err := s.store.AvailableOffers(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SimulationSummary{
		TotalPurchasedKwh: decimal.Zero,
		TotalCost:         decimal.Zero,
		PriceUsedKwh:      price.PriceKwh,
	}
	if len(offers) == 0 {
		return summary, nil
	}

	now := time.Now().UTC()
	cs := &store.ChangeSet{}

	// Working copy of each seller's entries, threaded across offers so a
	// seller with several offers allocates against their own updates.
	working := make(map[string][]model.ProductionEntry)
	touched := make(map[string]model.ProductionEntry)

	for i := range offers {
		offer := offers[i]
		quantity := offer.RemainingKwh

		entries, ok := working[offer.SellerID]
		if !ok {
			entries, err = s.store.EntriesFor(ctx, offer.SellerID)
			if err != nil {
				return nil, err
			}
			working[offer.SellerID] = entries
		}

		changed, err := ledger.Allocate(entries, quantity, ledger.Sell)
		if err != nil {
			return nil, s.invariantFailure("simulate market", offer.SellerID, err)
		}
		for _, e := range changed {
			touched[e.ID] = e
			for j := range entries {
				if entries[j].ID == e.ID {
					entries[j] = e
					break
				}
			}
		}

		cost := quantity.Mul(price.PriceKwh).Round(model.AmountScale)
		order := model.Order{
			ID:          uuid.New().String(),
			BuyerID:     system.ID,
			OfferID:     offer.ID,
			QuantityKwh: quantity,
			TotalPrice:  cost,
			CreatedAt:   now,
		}

		offer.RemainingKwh = decimal.Zero
		offer.Status = model.OfferUnavailable
		offer.UpdatedAt = now

		cs.Offers = append(cs.Offers, offer)
		cs.Orders = append(cs.Orders, order)

		summary.OffersProcessed++
		summary.TotalPurchasedKwh = summary.TotalPurchasedKwh.Add(quantity)
		summary.TotalCost = summary.TotalCost.Add(cost)
	}

	for _, e := range touched {
		cs.Entries = append(cs.Entries, e)
	}
	if err := ledger.CheckInvariants(cs.Entries); err != nil {
		return nil, s.invariantFailure("simulate market", system.ID, err)
	}

	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, err
	}

	slog.Info("market simulation completed",
		"offers_processed", summary.OffersProcessed,
		"total_kwh", summary.TotalPurchasedKwh.String(),
		"total_cost", summary.TotalCost.String(),
		"price_kwh", price.PriceKwh.String(),
	)
	for i := range cs.Orders {
		s.bus.Publish(event.Event{
			Type:      event.OrderCreated,
			UserID:    system.ID,
			OfferID:   cs.Orders[i].OfferID,
			OrderID:   cs.Orders[i].ID,
			AmountKwh: cs.Orders[i].QuantityKwh.String(),
			Price:     price.PriceKwh.String(),
			Reason:    "simulation",
		})
	}
	s.bus.Publish(event.Event{
		Type:      event.MarketSimulated,
		UserID:    system.ID,
		AmountKwh: summary.TotalPurchasedKwh.String(),
		Price:     price.PriceKwh.String(),
	})
	return summary, nil
}
