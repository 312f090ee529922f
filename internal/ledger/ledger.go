// Package ledger implements the energy allocation engine: it moves a given
// quantity of energy between the available, used, and sold states across a
// seller's production entries.
//
// Allocation is greedy first-fit in ascending creation order. That is a
// deliberate policy choice over pro-rata distribution: repeated runs over the
// same state produce identical per-entry splits, which keeps audit trails and
// tests reproducible.
//
// All functions here are pure with respect to storage: they take entry
// slices, return modified copies, and never persist anything. The caller is
// responsible for committing all returned entries atomically.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

// Mode selects what an allocation does to each entry it touches.
type Mode string

const (
	// Reserve increases UsedKwh from available surplus. Used when an offer
	// is created or grown.
	Reserve Mode = "reserve"

	// Release decreases UsedKwh back into available surplus. Used when an
	// offer is deleted or shrunk.
	Release Mode = "release"

	// Sell converts UsedKwh into SoldKwh. Used when an order completes;
	// the quantity is drawn from the seller's entries, never the buyer's.
	Sell Mode = "sell"
)

// ErrInvalidAmount is returned when an allocation amount is negative.
var ErrInvalidAmount = errors.New("ledger: allocation amount must not be negative")

// InsufficientCapacityError reports that the entries could not absorb the
// full amount. Remaining is the portion left unallocated after walking
// every entry.
type InsufficientCapacityError struct {
	Mode      Mode
	Remaining decimal.Decimal
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("ledger: insufficient capacity for %s, %s kWh unallocated", e.Mode, e.Remaining)
}

// Allocate distributes amount across entries in the order given (callers
// pass entries in ascending creation order) and returns copies of only the
// entries that changed. The input slice is never mutated, so a failed
// allocation leaves no trace.
//
// A zero amount is a no-op success. A negative amount fails with
// ErrInvalidAmount before anything is examined. If the entries cannot
// absorb the full amount, the call fails with InsufficientCapacityError
// and no changed entries are returned.
func Allocate(entries []model.ProductionEntry, amount decimal.Decimal, mode Mode) ([]model.ProductionEntry, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil, nil
	}

	remaining := amount
	var changed []model.ProductionEntry

	for i := range entries {
		capacity := capacityFor(&entries[i], mode)
		if !capacity.IsPositive() {
			continue
		}

		take := decimal.Min(remaining, capacity)
		e := entries[i] // copy; the caller's slice stays untouched
		apply(&e, mode, take)
		changed = append(changed, e)

		remaining = remaining.Sub(take)
		if !remaining.IsPositive() {
			break
		}
	}

	if remaining.IsPositive() {
		return nil, &InsufficientCapacityError{Mode: mode, Remaining: remaining}
	}
	return changed, nil
}

// capacityFor returns how much of the amount one entry can absorb in the
// given mode: spare surplus for reservations, the current reservation for
// releases and sales.
func capacityFor(e *model.ProductionEntry, mode Mode) decimal.Decimal {
	switch mode {
	case Reserve:
		return e.AvailableSurplus()
	case Release, Sell:
		return e.UsedKwh
	default:
		return decimal.Zero
	}
}

func apply(e *model.ProductionEntry, mode Mode, take decimal.Decimal) {
	switch mode {
	case Reserve:
		e.UsedKwh = e.UsedKwh.Add(take)
	case Release:
		e.UsedKwh = e.UsedKwh.Sub(take)
	case Sell:
		e.UsedKwh = e.UsedKwh.Sub(take)
		e.SoldKwh = e.SoldKwh.Add(take)
	}
}

// AvailableSurplus sums the unreserved, unsold surplus across entries.
func AvailableSurplus(entries []model.ProductionEntry) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].AvailableSurplus())
	}
	return total
}

// Summary aggregates a user's ledger into the figures reported alongside
// production listings.
type Summary struct {
	TotalProducedKwh decimal.Decimal `json:"total_produced_kwh"`
	TotalConsumedKwh decimal.Decimal `json:"total_consumed_kwh"`
	NetProductionKwh decimal.Decimal `json:"net_production_kwh"`
	UsedKwh          decimal.Decimal `json:"used_kwh"`
	SoldKwh          decimal.Decimal `json:"sold_kwh"`
	AvailableKwh     decimal.Decimal `json:"available_kwh"`
}

// Summarize computes the aggregate surplus figures over a set of entries.
func Summarize(entries []model.ProductionEntry) Summary {
	s := Summary{
		TotalProducedKwh: decimal.Zero,
		TotalConsumedKwh: decimal.Zero,
		NetProductionKwh: decimal.Zero,
		UsedKwh:          decimal.Zero,
		SoldKwh:          decimal.Zero,
		AvailableKwh:     decimal.Zero,
	}
	for i := range entries {
		e := &entries[i]
		s.TotalProducedKwh = s.TotalProducedKwh.Add(e.ProducedKwh)
		s.TotalConsumedKwh = s.TotalConsumedKwh.Add(e.ConsumedKwh)
		s.UsedKwh = s.UsedKwh.Add(e.UsedKwh)
		s.SoldKwh = s.SoldKwh.Add(e.SoldKwh)
	}
	s.NetProductionKwh = s.TotalProducedKwh.Sub(s.TotalConsumedKwh)
	s.AvailableKwh = s.NetProductionKwh.Sub(s.UsedKwh).Sub(s.SoldKwh)
	return s
}

// CheckInvariants verifies every entry holds 0 <= used, 0 <= sold and
// used + sold <= netSurplus. A violation after a precondition-checked
// allocation means the engine and its callers have drifted out of sync.
func CheckInvariants(entries []model.ProductionEntry) error {
	for i := range entries {
		e := &entries[i]
		if e.UsedKwh.IsNegative() {
			return fmt.Errorf("ledger: entry %s has negative used_kwh %s", e.ID, e.UsedKwh)
		}
		if e.SoldKwh.IsNegative() {
			return fmt.Errorf("ledger: entry %s has negative sold_kwh %s", e.ID, e.SoldKwh)
		}
		if e.UsedKwh.Add(e.SoldKwh).GreaterThan(e.NetSurplus()) {
			return fmt.Errorf("ledger: entry %s over-allocated: used %s + sold %s > surplus %s",
				e.ID, e.UsedKwh, e.SoldKwh, e.NetSurplus())
		}
	}
	return nil
}
