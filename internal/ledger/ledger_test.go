package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/ledger"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// entry builds a test production entry with the given readings.
func entry(id string, produced, consumed, used, sold float64) model.ProductionEntry {
	return model.ProductionEntry{
		ID:          id,
		OwnerID:     "seller",
		ProducedKwh: d(produced),
		ConsumedKwh: d(consumed),
		UsedKwh:     d(used),
		SoldKwh:     d(sold),
		CreatedAt:   time.Now().UTC(),
	}
}

func TestAllocate_ReserveSingleEntry(t *testing.T) {
	entries := []model.ProductionEntry{entry("e1", 200, 50, 0, 0)}

	changed, err := ledger.Allocate(entries, d(120), ledger.Reserve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed entry, got %d", len(changed))
	}
	if !changed[0].UsedKwh.Equal(d(120)) {
		t.Errorf("used = %s, want 120", changed[0].UsedKwh)
	}
	if !changed[0].AvailableSurplus().Equal(d(30)) {
		t.Errorf("available = %s, want 30", changed[0].AvailableSurplus())
	}
	// Input slice must be untouched.
	if !entries[0].UsedKwh.IsZero() {
		t.Errorf("input entry mutated: used = %s", entries[0].UsedKwh)
	}
}

func TestAllocate_ReserveSpansEntriesInCreationOrder(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 100, 40, 0, 0), // surplus 60
		entry("e2", 80, 0, 0, 0),   // surplus 80
		entry("e3", 50, 0, 0, 0),   // surplus 50
	}

	changed, err := ledger.Allocate(entries, d(100), ledger.Reserve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed entries, got %d", len(changed))
	}
	if changed[0].ID != "e1" || !changed[0].UsedKwh.Equal(d(60)) {
		t.Errorf("first split = %s/%s, want e1/60", changed[0].ID, changed[0].UsedKwh)
	}
	if changed[1].ID != "e2" || !changed[1].UsedKwh.Equal(d(40)) {
		t.Errorf("second split = %s/%s, want e2/40", changed[1].ID, changed[1].UsedKwh)
	}
}

func TestAllocate_SkipsFullEntries(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 50, 0, 50, 0), // no spare surplus
		entry("e2", 50, 0, 0, 0),
	}

	changed, err := ledger.Allocate(entries, d(30), ledger.Reserve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 || changed[0].ID != "e2" {
		t.Fatalf("expected only e2 to change, got %+v", changed)
	}
}

func TestAllocate_InsufficientCapacity(t *testing.T) {
	entries := []model.ProductionEntry{entry("e1", 100, 70, 0, 0)} // surplus 30

	changed, err := ledger.Allocate(entries, d(50), ledger.Reserve)
	if changed != nil {
		t.Errorf("expected no changed entries on failure, got %d", len(changed))
	}

	var capErr *ledger.InsufficientCapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected InsufficientCapacityError, got %v", err)
	}
	if !capErr.Remaining.Equal(d(20)) {
		t.Errorf("remaining = %s, want 20", capErr.Remaining)
	}
	if !entries[0].UsedKwh.IsZero() {
		t.Errorf("input entry mutated on failure: used = %s", entries[0].UsedKwh)
	}
}

func TestAllocate_ZeroAmountIsNoOp(t *testing.T) {
	for _, mode := range []ledger.Mode{ledger.Reserve, ledger.Release, ledger.Sell} {
		entries := []model.ProductionEntry{entry("e1", 100, 0, 20, 10)}
		changed, err := ledger.Allocate(entries, decimal.Zero, mode)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", mode, err)
		}
		if changed != nil {
			t.Errorf("%s: expected no changes for zero amount", mode)
		}
	}
}

func TestAllocate_NegativeAmountRejected(t *testing.T) {
	entries := []model.ProductionEntry{entry("e1", 100, 0, 0, 0)}
	_, err := ledger.Allocate(entries, d(-1), ledger.Reserve)
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAllocate_ReleaseReturnsReservation(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 100, 0, 60, 0),
		entry("e2", 100, 0, 40, 0),
	}

	changed, err := ledger.Allocate(entries, d(80), ledger.Release)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed[0].UsedKwh.IsZero() {
		t.Errorf("e1 used = %s, want 0", changed[0].UsedKwh)
	}
	if !changed[1].UsedKwh.Equal(d(20)) {
		t.Errorf("e2 used = %s, want 20", changed[1].UsedKwh)
	}
}

func TestAllocate_SellConvertsUsedToSold(t *testing.T) {
	entries := []model.ProductionEntry{entry("e1", 200, 50, 120, 0)}

	changed, err := ledger.Allocate(entries, d(50), ledger.Sell)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed[0].UsedKwh.Equal(d(70)) {
		t.Errorf("used = %s, want 70", changed[0].UsedKwh)
	}
	if !changed[0].SoldKwh.Equal(d(50)) {
		t.Errorf("sold = %s, want 50", changed[0].SoldKwh)
	}
	// Sell must not touch raw readings or net surplus.
	if !changed[0].NetSurplus().Equal(d(150)) {
		t.Errorf("net surplus = %s, want 150", changed[0].NetSurplus())
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	build := func() []model.ProductionEntry {
		return []model.ProductionEntry{
			entry("e1", 30, 0, 5, 0),
			entry("e2", 70, 10, 0, 20),
			entry("e3", 90, 0, 40, 0),
		}
	}

	first, err := ledger.Allocate(build(), d(55), ledger.Reserve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ledger.Allocate(build(), d(55), ledger.Reserve)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: split length %d != %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].ID != first[j].ID || !again[j].UsedKwh.Equal(first[j].UsedKwh) {
				t.Fatalf("run %d: split diverged at %d: %s/%s vs %s/%s",
					i, j, again[j].ID, again[j].UsedKwh, first[j].ID, first[j].UsedKwh)
			}
		}
	}
}

func TestAllocate_InvariantHeldAfterEveryMode(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 200, 50, 0, 0),
		entry("e2", 100, 20, 0, 0),
	}

	reserved, err := ledger.Allocate(entries, d(180), ledger.Reserve)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.CheckInvariants(reserved); err != nil {
		t.Errorf("after reserve: %v", err)
	}

	sold, err := ledger.Allocate(reserved, d(100), ledger.Sell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if err := ledger.CheckInvariants(sold); err != nil {
		t.Errorf("after sell: %v", err)
	}

	released, err := ledger.Allocate(sold, d(50), ledger.Release)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := ledger.CheckInvariants(released); err != nil {
		t.Errorf("after release: %v", err)
	}
}

func TestCheckInvariants_DetectsOverAllocation(t *testing.T) {
	bad := []model.ProductionEntry{entry("e1", 100, 0, 80, 30)} // 110 > 100
	if err := ledger.CheckInvariants(bad); err == nil {
		t.Error("expected over-allocation to be detected")
	}

	negative := []model.ProductionEntry{entry("e1", 100, 0, -1, 0)}
	if err := ledger.CheckInvariants(negative); err == nil {
		t.Error("expected negative used_kwh to be detected")
	}
}

func TestSummarize(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 200, 50, 70, 50),
		entry("e2", 100, 40, 10, 0),
	}

	s := ledger.Summarize(entries)
	if !s.TotalProducedKwh.Equal(d(300)) {
		t.Errorf("produced = %s, want 300", s.TotalProducedKwh)
	}
	if !s.NetProductionKwh.Equal(d(210)) {
		t.Errorf("net = %s, want 210", s.NetProductionKwh)
	}
	if !s.UsedKwh.Equal(d(80)) {
		t.Errorf("used = %s, want 80", s.UsedKwh)
	}
	if !s.SoldKwh.Equal(d(50)) {
		t.Errorf("sold = %s, want 50", s.SoldKwh)
	}
	if !s.AvailableKwh.Equal(d(80)) {
		t.Errorf("available = %s, want 80", s.AvailableKwh)
	}
}

func TestAvailableSurplus_IgnoresNothing(t *testing.T) {
	entries := []model.ProductionEntry{
		entry("e1", 50, 10, 15, 5), // available 20
		entry("e2", 30, 0, 0, 0),   // available 30
	}
	if got := ledger.AvailableSurplus(entries); !got.Equal(d(50)) {
		t.Errorf("available = %s, want 50", got)
	}
}
