// Package price provides HTTP handlers for grid clearing prices. The market
// simulation buys at the most recent price recorded here.
package price

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/httpx"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

// Service handles clearing price requests.
type Service struct {
	store store.Store
}

// NewService creates a new price service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// PriceRequest is the JSON body for creating or updating a clearing price.
type PriceRequest struct {
	ProviderName string          `json:"provider_name"`
	PriceKwh     decimal.Decimal `json:"price_kwh"`
	PriceTime    time.Time       `json:"price_time"`
}

func (r *PriceRequest) validate() string {
	if r.ProviderName == "" {
		return "provider_name is required"
	}
	if !r.PriceKwh.IsPositive() {
		return "price_kwh must be positive"
	}
	if r.PriceTime.IsZero() {
		return "price_time is required"
	}
	return ""
}

// HandleCreate handles POST /api/v1/prices.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	p := model.ClearingPrice{
		ID:           uuid.New().String(),
		ProviderName: req.ProviderName,
		PriceKwh:     req.PriceKwh,
		PriceTime:    req.PriceTime.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertPrice(r.Context(), &p); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /api/v1/prices.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListPrices(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	if prices == nil {
		prices = []model.ClearingPrice{}
	}
	httpx.WriteJSON(w, http.StatusOK, prices)
}

// HandleLatest handles GET /api/v1/prices/latest.
func (s *Service) HandleLatest(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.LatestPrice(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no prices recorded")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleGet handles GET /api/v1/prices/{priceID}.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPrice(r.Context(), chi.URLParam(r, "priceID"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "price not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /api/v1/prices/{priceID}.
func (s *Service) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	p := model.ClearingPrice{
		ID:           chi.URLParam(r, "priceID"),
		ProviderName: req.ProviderName,
		PriceKwh:     req.PriceKwh,
		PriceTime:    req.PriceTime.UTC(),
	}
	if err := s.store.UpdatePrice(r.Context(), &p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "price not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /api/v1/prices/{priceID}.
func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SoftDeletePrice(r.Context(), chi.URLParam(r, "priceID"), time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "price not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "price deleted"})
}
