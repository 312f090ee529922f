package price_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/price"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := price.NewService(ms)

	r := chi.NewRouter()
	r.Post("/api/v1/prices", svc.HandleCreate)
	r.Get("/api/v1/prices", svc.HandleList)
	r.Get("/api/v1/prices/latest", svc.HandleLatest)
	r.Get("/api/v1/prices/{priceID}", svc.HandleGet)
	r.Put("/api/v1/prices/{priceID}", svc.HandleUpdate)
	r.Delete("/api/v1/prices/{priceID}", svc.HandleDelete)
	return ms, r
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

func TestCreatePrice(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/prices", price.PriceRequest{
		ProviderName: "grid", PriceKwh: d(0.42), PriceTime: time.Now().UTC(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var p model.ClearingPrice
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.ID == "" {
		t.Error("expected generated price ID")
	}
	if !p.PriceKwh.Equal(d(0.42)) {
		t.Errorf("price = %s, want 0.42", p.PriceKwh)
	}
}

func TestCreatePrice_Validation(t *testing.T) {
	_, router := newTestEnv(t)

	cases := []struct {
		name string
		req  price.PriceRequest
	}{
		{"missing provider", price.PriceRequest{PriceKwh: d(1), PriceTime: time.Now()}},
		{"zero price", price.PriceRequest{ProviderName: "grid", PriceTime: time.Now()}},
		{"negative price", price.PriceRequest{ProviderName: "grid", PriceKwh: d(-1), PriceTime: time.Now()}},
		{"missing time", price.PriceRequest{ProviderName: "grid", PriceKwh: d(1)}},
	}
	for _, tc := range cases {
		w := doJSON(t, router, "POST", "/api/v1/prices", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestLatestPrice(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/prices/latest", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no prices: expected 404, got %d", w.Code)
	}

	now := time.Now().UTC()
	for _, p := range []price.PriceRequest{
		{ProviderName: "grid", PriceKwh: d(0.9), PriceTime: now.Add(-time.Hour)},
		{ProviderName: "grid", PriceKwh: d(0.3), PriceTime: now},
	} {
		if w := doJSON(t, router, "POST", "/api/v1/prices", p); w.Code != http.StatusCreated {
			t.Fatalf("seed price: %d %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(t, router, "GET", "/api/v1/prices/latest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var latest model.ClearingPrice
	json.Unmarshal(w.Body.Bytes(), &latest)
	if !latest.PriceKwh.Equal(d(0.3)) {
		t.Errorf("latest price = %s, want 0.3", latest.PriceKwh)
	}
}

func TestUpdateAndDeletePrice(t *testing.T) {
	_, router := newTestEnv(t)
	now := time.Now().UTC()

	w := doJSON(t, router, "POST", "/api/v1/prices", price.PriceRequest{
		ProviderName: "grid", PriceKwh: d(0.5), PriceTime: now,
	})
	var p model.ClearingPrice
	json.Unmarshal(w.Body.Bytes(), &p)

	w = doJSON(t, router, "PUT", "/api/v1/prices/"+p.ID, price.PriceRequest{
		ProviderName: "grid-2", PriceKwh: d(0.6), PriceTime: now,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/prices/"+p.ID, nil)
	var got model.ClearingPrice
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.ProviderName != "grid-2" || !got.PriceKwh.Equal(d(0.6)) {
		t.Errorf("update not applied: %+v", got)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/prices/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = doJSON(t, router, "GET", "/api/v1/prices/"+p.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}

	w = doJSON(t, router, "PUT", "/api/v1/prices/missing", price.PriceRequest{
		ProviderName: "grid", PriceKwh: d(1), PriceTime: now,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing: expected 404, got %d", w.Code)
	}
}
