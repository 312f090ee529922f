package market

import (
	"errors"
	"fmt"
)

// Business-rule errors: a precondition was not met. Reported to clients as
// 4xx with a stable reason code; nothing has been mutated when one of these
// is returned.
var (
	// ErrInsufficientSurplus means the seller's available surplus cannot
	// cover the requested reservation.
	ErrInsufficientSurplus = errors.New("market: insufficient available surplus")

	// ErrOfferUnavailable means the offer exists but is not open for purchase.
	ErrOfferUnavailable = errors.New("market: offer is not available")

	// ErrSelfTrade means a buyer tried to purchase their own offer.
	ErrSelfTrade = errors.New("market: cannot purchase your own offer")

	// ErrQuantityExceedsOffer means the requested quantity exceeds the
	// offer's remaining amount.
	ErrQuantityExceedsOffer = errors.New("market: quantity exceeds remaining offer amount")

	// ErrForbidden means the caller does not own the target resource.
	ErrForbidden = errors.New("market: forbidden")

	// ErrNoPrice means the market simulation found no clearing price.
	ErrNoPrice = errors.New("market: no clearing price available")

	// ErrNoSystemAccount means the simulation's system account is not
	// configured or does not exist.
	ErrNoSystemAccount = errors.New("market: system account not found")
)

// InvariantError marks an allocation that failed after its preconditions
// passed: the precondition check and the allocation engine disagree about
// the ledger. The operation has been fully rolled back; this is a server
// fault, not a client error.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("market: %s: allocation failed after preconditions passed: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
