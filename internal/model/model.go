// Package model defines the core domain types shared across the energy
// marketplace. All kWh and currency amounts use shopspring/decimal, never
// float64 for energy or money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places kept on kWh and currency
// amounts at persistence boundaries.
const AmountScale int32 = 2

// Role classifies a user by their relationship to the grid.
type Role string

const (
	RoleProsumer  Role = "prosumer"
	RoleConsumer  Role = "consumer"
	RoleGenerator Role = "generator"
)

// User is a marketplace participant. The market simulation runs purchases
// through a designated system account, which is an ordinary User row.
type User struct {
	ID        string     `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	Name      string     `json:"name" db:"name"`
	Location  string     `json:"location" db:"location"`
	Role      Role       `json:"role" db:"role"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ProductionEntry is one line of a user's energy ledger: raw meter readings
// plus the portions of the net surplus reserved by active offers (Used) or
// irreversibly sold through completed orders (Sold).
//
// Invariant: 0 <= Used, 0 <= Sold, Used + Sold <= Produced - Consumed.
type ProductionEntry struct {
	ID          string          `json:"id" db:"id"`
	OwnerID     string          `json:"owner_id" db:"owner_id"`
	ProducedKwh decimal.Decimal `json:"produced_kwh" db:"produced_kwh"`
	ConsumedKwh decimal.Decimal `json:"consumed_kwh" db:"consumed_kwh"` // site consumption, not sales
	UsedKwh     decimal.Decimal `json:"used_kwh" db:"used_kwh"`
	SoldKwh     decimal.Decimal `json:"sold_kwh" db:"sold_kwh"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NetSurplus is the energy this entry makes sellable: produced - consumed.
func (e *ProductionEntry) NetSurplus() decimal.Decimal {
	return e.ProducedKwh.Sub(e.ConsumedKwh)
}

// AvailableSurplus is the net surplus not yet reserved or sold.
func (e *ProductionEntry) AvailableSurplus() decimal.Decimal {
	return e.NetSurplus().Sub(e.UsedKwh).Sub(e.SoldKwh)
}

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferAvailable   OfferStatus = "available"
	OfferUnavailable OfferStatus = "unavailable"
)

// Offer advertises a seller's surplus energy for sale. RemainingKwh tracks
// the unsold portion; at rest it equals the reservation held across the
// seller's production entries for this offer.
type Offer struct {
	ID           string          `json:"id" db:"id"`
	SellerID     string          `json:"seller_id" db:"seller_id"`
	TotalKwh     decimal.Decimal `json:"total_kwh" db:"total_kwh"`
	RemainingKwh decimal.Decimal `json:"remaining_kwh" db:"remaining_kwh"`
	PriceKwh     decimal.Decimal `json:"price_kwh" db:"price_kwh"`
	Status       OfferStatus     `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Order records a buyer's purchase of part of one offer. Orders are
// immutable once created; soft-deleting one does not give the energy back.
type Order struct {
	ID          string          `json:"id" db:"id"`
	BuyerID     string          `json:"buyer_id" db:"buyer_id"`
	OfferID     string          `json:"offer_id" db:"offer_id"`
	QuantityKwh decimal.Decimal `json:"quantity_kwh" db:"quantity_kwh"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ClearingPrice is a time-stamped grid price. The market simulation uses
// the price with the most recent PriceTime.
type ClearingPrice struct {
	ID           string          `json:"id" db:"id"`
	ProviderName string          `json:"provider_name" db:"provider_name"`
	PriceKwh     decimal.Decimal `json:"price_kwh" db:"price_kwh"`
	PriceTime    time.Time       `json:"price_time" db:"price_time"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}
