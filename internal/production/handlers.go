// Package production provides HTTP handlers for recording and correcting
// energy production/consumption entries, and for reporting surplus figures
// derived from them.
package production

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/httpx"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/ledger"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

// Service handles production entry requests.
type Service struct {
	store store.Store
}

// NewService creates a new production service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// EntryView is a production entry plus its derived surplus figures.
type EntryView struct {
	model.ProductionEntry
	NetSurplusKwh       decimal.Decimal `json:"net_surplus_kwh"`
	AvailableSurplusKwh decimal.Decimal `json:"available_surplus_kwh"`
}

func view(e model.ProductionEntry) EntryView {
	return EntryView{
		ProductionEntry:     e,
		NetSurplusKwh:       e.NetSurplus(),
		AvailableSurplusKwh: e.AvailableSurplus(),
	}
}

// CreateRequest is the JSON body for POST /productions.
type CreateRequest struct {
	UserID      string          `json:"user_id"`
	ProducedKwh decimal.Decimal `json:"produced_kwh"`
	ConsumedKwh decimal.Decimal `json:"consumed_kwh"`
}

// UpdateRequest is the JSON body for PUT /productions/{entryID}: an explicit
// correction of the raw meter readings.
type UpdateRequest struct {
	UserID      string          `json:"user_id"`
	ProducedKwh decimal.Decimal `json:"produced_kwh"`
	ConsumedKwh decimal.Decimal `json:"consumed_kwh"`
}

// HandleCreate handles POST /api/v1/productions.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if req.ProducedKwh.IsNegative() || req.ConsumedKwh.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "readings must not be negative")
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	entry := model.ProductionEntry{
		ID:          uuid.New().String(),
		OwnerID:     req.UserID,
		ProducedKwh: req.ProducedKwh,
		ConsumedKwh: req.ConsumedKwh,
		UsedKwh:     decimal.Zero,
		SoldKwh:     decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertEntry(ctx, &entry); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, view(entry))
}

// ListResponse is the JSON body for GET /productions.
type ListResponse struct {
	Data    []EntryView    `json:"data"`
	Summary ledger.Summary `json:"summary"`
}

// HandleList handles GET /api/v1/productions?user_id=. It returns the
// user's entries with derived surplus fields plus aggregate figures.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("user_id")
	if ownerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	entries, err := s.store.EntriesFor(r.Context(), ownerID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, view(e))
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{
		Data:    views,
		Summary: ledger.Summarize(entries),
	})
}

// HandleGet handles GET /api/v1/productions/{entryID}.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "production entry not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view(*entry))
}

// HandleUpdate handles PUT /api/v1/productions/{entryID}. Corrections may
// not shrink the surplus below what is already reserved or sold.
func (s *Service) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ProducedKwh.IsNegative() || req.ConsumedKwh.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "readings must not be negative")
		return
	}

	ctx := r.Context()
	entry, err := s.store.GetEntry(ctx, chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "production entry not found")
		return
	}
	if entry.OwnerID != req.UserID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "you do not own this entry")
		return
	}

	newSurplus := req.ProducedKwh.Sub(req.ConsumedKwh)
	if entry.UsedKwh.Add(entry.SoldKwh).GreaterThan(newSurplus) {
		httpx.WriteError(w, http.StatusBadRequest, "surplus_committed",
			"correction would shrink surplus below the reserved and sold amounts")
		return
	}

	if err := s.store.UpdateEntryReadings(ctx, entry.ID, req.ProducedKwh, req.ConsumedKwh); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	entry.ProducedKwh = req.ProducedKwh
	entry.ConsumedKwh = req.ConsumedKwh
	httpx.WriteJSON(w, http.StatusOK, view(*entry))
}

// HandleDelete handles DELETE /api/v1/productions/{entryID}?user_id=.
// Soft-deletion excludes the entry from future allocation; it does not
// retroactively fix offers that reserved against it.
func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID := r.URL.Query().Get("user_id")
	if callerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	ctx := r.Context()
	entry, err := s.store.GetEntry(ctx, chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "production entry not found")
		return
	}
	if entry.OwnerID != callerID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "you do not own this entry")
		return
	}

	if err := s.store.SoftDeleteEntry(ctx, entry.ID, time.Now().UTC()); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "production entry deleted"})
}
