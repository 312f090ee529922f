package market

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/httpx"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

// CreateOfferRequest is the JSON body for POST /offers.
type CreateOfferRequest struct {
	UserID   string          `json:"user_id"`
	TotalKwh decimal.Decimal `json:"total_kwh"`
	PriceKwh decimal.Decimal `json:"price_kwh"`
}

// UpdateOfferRequest is the JSON body for PUT /offers/{offerID}. A nil
// PriceKwh leaves the asking price unchanged.
type UpdateOfferRequest struct {
	UserID       string           `json:"user_id"`
	RemainingKwh decimal.Decimal  `json:"remaining_kwh"`
	PriceKwh     *decimal.Decimal `json:"price_kwh,omitempty"`
}

// CreateOrderRequest is the JSON body for POST /orders.
type CreateOrderRequest struct {
	UserID      string          `json:"user_id"`
	OfferID     string          `json:"offer_id"`
	QuantityKwh decimal.Decimal `json:"quantity_kwh"`
}

// writeServiceError maps engine errors onto HTTP statuses and stable
// reason codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var invErr *InvariantError
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "you do not own this resource")
	case errors.Is(err, ErrInsufficientSurplus):
		httpx.WriteError(w, http.StatusBadRequest, "insufficient_surplus", "insufficient available surplus")
	case errors.Is(err, ErrOfferUnavailable):
		httpx.WriteError(w, http.StatusBadRequest, "offer_unavailable", "offer not available")
	case errors.Is(err, ErrSelfTrade):
		httpx.WriteError(w, http.StatusBadRequest, "self_trade", "cannot purchase your own offer")
	case errors.Is(err, ErrQuantityExceedsOffer):
		httpx.WriteError(w, http.StatusBadRequest, "quantity_exceeds_offer", "insufficient quantity available")
	case errors.Is(err, ErrNoPrice):
		httpx.WriteError(w, http.StatusBadRequest, "no_price_available", "no provider prices available")
	case errors.Is(err, ErrNoSystemAccount):
		httpx.WriteError(w, http.StatusBadRequest, "no_system_account", "system account not found")
	case errors.As(err, &invErr):
		httpx.WriteError(w, http.StatusInternalServerError, "allocation_failed", "internal ledger error")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
	}
}

// HandleCreateOffer handles POST /api/v1/offers.
func (s *Service) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if !req.TotalKwh.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "total_kwh must be positive")
		return
	}
	if !req.PriceKwh.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "price_kwh must be positive")
		return
	}

	offer, err := s.CreateOffer(r.Context(), req.UserID, req.TotalKwh, req.PriceKwh)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, offer)
}

// HandleGetOffer handles GET /api/v1/offers/{offerID}.
func (s *Service) HandleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := s.store.GetOffer(r.Context(), chi.URLParam(r, "offerID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, offer)
}

// HandleListOffers handles GET /api/v1/offers, optionally filtered by
// ?status= and ?seller_id=.
func (s *Service) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	f := store.OfferFilter{
		Status:   model.OfferStatus(r.URL.Query().Get("status")),
		SellerID: r.URL.Query().Get("seller_id"),
	}
	offers, err := s.store.ListOffers(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	httpx.WriteJSON(w, http.StatusOK, offers)
}

// HandleUpdateOffer handles PUT /api/v1/offers/{offerID}.
func (s *Service) HandleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req UpdateOfferRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if req.RemainingKwh.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "remaining_kwh must not be negative")
		return
	}
	if req.PriceKwh != nil && !req.PriceKwh.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "price_kwh must be positive")
		return
	}

	offer, err := s.ResizeOffer(r.Context(), chi.URLParam(r, "offerID"), req.UserID, req.RemainingKwh, req.PriceKwh)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, offer)
}

// HandleDeleteOffer handles DELETE /api/v1/offers/{offerID}?user_id=.
func (s *Service) HandleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	callerID := r.URL.Query().Get("user_id")
	if callerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	if err := s.DeleteOffer(r.Context(), chi.URLParam(r, "offerID"), callerID); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "offer deleted"})
}

// HandleCreateOrder handles POST /api/v1/orders.
func (s *Service) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.UserID == "" || req.OfferID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id and offer_id are required")
		return
	}
	if !req.QuantityKwh.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "quantity_kwh must be positive")
		return
	}

	order, err := s.CreateOrder(r.Context(), req.UserID, req.OfferID, req.QuantityKwh)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

// HandleGetOrder handles GET /api/v1/orders/{orderID}.
func (s *Service) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// HandleListOrders handles GET /api/v1/orders?user_id=.
func (s *Service) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := r.URL.Query().Get("user_id")
	if buyerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	orders, err := s.store.OrdersForBuyer(r.Context(), buyerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

// HandleDeleteOrder handles DELETE /api/v1/orders/{orderID}?user_id=.
// Deleting an order hides it from listings; it never returns sold energy
// to the seller's ledger.
func (s *Service) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	callerID := r.URL.Query().Get("user_id")
	if callerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	if err := s.DeleteOrder(r.Context(), chi.URLParam(r, "orderID"), callerID); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// HandleSimulate handles POST /api/v1/market/simulate.
func (s *Service) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Simulate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
