package production_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/production"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := production.NewService(ms)

	r := chi.NewRouter()
	r.Post("/api/v1/productions", svc.HandleCreate)
	r.Get("/api/v1/productions", svc.HandleList)
	r.Get("/api/v1/productions/{entryID}", svc.HandleGet)
	r.Put("/api/v1/productions/{entryID}", svc.HandleUpdate)
	r.Delete("/api/v1/productions/{entryID}", svc.HandleDelete)
	return ms, r
}

func seedUser(t *testing.T, ms *store.MemoryStore, id string) {
	t.Helper()
	u := model.User{ID: id, Email: id + "@example.com", Name: id, Role: model.RoleProsumer, CreatedAt: time.Now().UTC()}
	if err := ms.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateEntry(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	w := doJSON(t, router, "POST", "/api/v1/productions", production.CreateRequest{
		UserID: "owner", ProducedKwh: d(200), ConsumedKwh: d(50),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var v production.EntryView
	json.Unmarshal(w.Body.Bytes(), &v)
	if !v.NetSurplusKwh.Equal(d(150)) {
		t.Errorf("net surplus = %s, want 150", v.NetSurplusKwh)
	}
	if !v.AvailableSurplusKwh.Equal(d(150)) {
		t.Errorf("available surplus = %s, want 150", v.AvailableSurplusKwh)
	}
	if !v.UsedKwh.IsZero() || !v.SoldKwh.IsZero() {
		t.Errorf("new entry must start with zero used/sold")
	}
}

func TestCreateEntry_Rejections(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	w := doJSON(t, router, "POST", "/api/v1/productions", production.CreateRequest{
		UserID: "ghost", ProducedKwh: d(10), ConsumedKwh: d(0),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/productions", production.CreateRequest{
		UserID: "owner", ProducedKwh: d(-1), ConsumedKwh: d(0),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative reading: expected 400, got %d", w.Code)
	}
}

func TestListEntries_IncludesSummary(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	entries := []model.ProductionEntry{
		{ID: "e1", OwnerID: "owner", ProducedKwh: d(100), ConsumedKwh: d(20), UsedKwh: d(30), SoldKwh: d(10), CreatedAt: time.Now().UTC()},
		{ID: "e2", OwnerID: "owner", ProducedKwh: d(50), ConsumedKwh: d(10), UsedKwh: decimal.Zero, SoldKwh: decimal.Zero, CreatedAt: time.Now().UTC()},
	}
	for i := range entries {
		if err := ms.InsertEntry(context.Background(), &entries[i]); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	w := doJSON(t, router, "GET", "/api/v1/productions?user_id=owner", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp production.ListResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Data))
	}
	if !resp.Summary.UsedKwh.Equal(d(30)) {
		t.Errorf("summary used = %s, want 30", resp.Summary.UsedKwh)
	}
	if !resp.Summary.SoldKwh.Equal(d(10)) {
		t.Errorf("summary sold = %s, want 10", resp.Summary.SoldKwh)
	}
	// (100-20-30-10) + (50-10) = 80
	if !resp.Summary.AvailableKwh.Equal(d(80)) {
		t.Errorf("summary available = %s, want 80", resp.Summary.AvailableKwh)
	}
}

func TestUpdateEntry_GuardsCommittedSurplus(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	e := model.ProductionEntry{
		ID: "e1", OwnerID: "owner",
		ProducedKwh: d(100), ConsumedKwh: d(10),
		UsedKwh: d(40), SoldKwh: d(20),
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.InsertEntry(context.Background(), &e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	// used+sold = 60; correcting to surplus 50 must be refused.
	w := doJSON(t, router, "PUT", "/api/v1/productions/e1", production.UpdateRequest{
		UserID: "owner", ProducedKwh: d(60), ConsumedKwh: d(10),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("surplus_committed")) {
		t.Errorf("expected surplus_committed code, got %s", w.Body.String())
	}

	// Correcting to surplus 70 is fine.
	w = doJSON(t, router, "PUT", "/api/v1/productions/e1", production.UpdateRequest{
		UserID: "owner", ProducedKwh: d(80), ConsumedKwh: d(10),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var v production.EntryView
	json.Unmarshal(w.Body.Bytes(), &v)
	if !v.AvailableSurplusKwh.Equal(d(10)) { // 80-10-40-20
		t.Errorf("available surplus = %s, want 10", v.AvailableSurplusKwh)
	}
}

func TestUpdateEntry_Forbidden(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	e := model.ProductionEntry{ID: "e1", OwnerID: "owner", ProducedKwh: d(10), CreatedAt: time.Now().UTC()}
	ms.InsertEntry(context.Background(), &e)

	w := doJSON(t, router, "PUT", "/api/v1/productions/e1", production.UpdateRequest{
		UserID: "other", ProducedKwh: d(20), ConsumedKwh: d(0),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	ms, router := newTestEnv(t)
	seedUser(t, ms, "owner")

	e := model.ProductionEntry{ID: "e1", OwnerID: "owner", ProducedKwh: d(10), CreatedAt: time.Now().UTC()}
	ms.InsertEntry(context.Background(), &e)

	w := doJSON(t, router, "DELETE", "/api/v1/productions/e1?user_id=other", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/productions/e1?user_id=owner", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/productions/e1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}
