// Package store defines the persistence interface for the energy
// marketplace. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no live (non-deleted) row.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an insert collides with an existing row
	// (duplicate ID or unique email).
	ErrConflict = errors.New("store: conflict with existing row")
)

// ChangeSet is the atomic write unit for ledger-affecting operations.
// Entries and offers are upserted by ID, orders are inserted; either the
// whole set is applied or none of it is. One offer/order operation, or one
// whole market simulation, is exactly one ChangeSet.
type ChangeSet struct {
	Entries []model.ProductionEntry
	Offers  []model.Offer
	Orders  []model.Order
}

// Empty reports whether the change set has nothing to apply.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Entries) == 0 && len(cs.Offers) == 0 && len(cs.Orders) == 0
}

// OfferFilter narrows ListOffers. Zero values mean "any".
type OfferFilter struct {
	Status   model.OfferStatus
	SellerID string
}

// Store is the persistence interface. All read methods exclude soft-deleted
// rows; EntriesFor and AvailableOffers return rows in ascending creation
// order, which the allocation engine relies on for deterministic splits.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user. Email must be unique among live users.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// ListUsers returns all live users.
	ListUsers(ctx context.Context) ([]model.User, error)

	// --- Production entries ---

	// InsertEntry appends a new production entry.
	InsertEntry(ctx context.Context, e *model.ProductionEntry) error

	// GetEntry retrieves one production entry by ID.
	GetEntry(ctx context.Context, id string) (*model.ProductionEntry, error)

	// EntriesFor returns a user's live entries in creation order.
	EntriesFor(ctx context.Context, ownerID string) ([]model.ProductionEntry, error)

	// UpdateEntryReadings corrects the raw meter readings of an entry.
	UpdateEntryReadings(ctx context.Context, id string, produced, consumed decimal.Decimal) error

	// SoftDeleteEntry excludes an entry from future allocation. It does not
	// retroactively fix offers that reserved against it.
	SoftDeleteEntry(ctx context.Context, id string, at time.Time) error

	// --- Offers ---

	// GetOffer retrieves a live offer by ID.
	GetOffer(ctx context.Context, id string) (*model.Offer, error)

	// ListOffers returns live offers matching the filter.
	ListOffers(ctx context.Context, f OfferFilter) ([]model.Offer, error)

	// AvailableOffers returns live offers with status available, in
	// creation order. The market simulation walks this list.
	AvailableOffers(ctx context.Context) ([]model.Offer, error)

	// --- Orders ---

	// GetOrder retrieves a live order by ID.
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// OrdersForBuyer returns a buyer's live orders in creation order.
	OrdersForBuyer(ctx context.Context, buyerID string) ([]model.Order, error)

	// SoftDeleteOrder hides an order from listings. The seller's ledger is
	// not reversed: sold energy stays sold.
	SoftDeleteOrder(ctx context.Context, id string, at time.Time) error

	// --- Clearing prices ---

	// InsertPrice records a new clearing price.
	InsertPrice(ctx context.Context, p *model.ClearingPrice) error

	// GetPrice retrieves a live clearing price by ID.
	GetPrice(ctx context.Context, id string) (*model.ClearingPrice, error)

	// ListPrices returns live prices in ascending price_time order.
	ListPrices(ctx context.Context) ([]model.ClearingPrice, error)

	// UpdatePrice replaces the mutable fields of a clearing price.
	UpdatePrice(ctx context.Context, p *model.ClearingPrice) error

	// SoftDeletePrice hides a clearing price.
	SoftDeletePrice(ctx context.Context, id string, at time.Time) error

	// LatestPrice returns the live price with the most recent price_time.
	LatestPrice(ctx context.Context) (*model.ClearingPrice, error)

	// --- Atomic commit ---

	// Commit applies a ChangeSet as a single atomic unit.
	Commit(ctx context.Context, cs *ChangeSet) error
}
