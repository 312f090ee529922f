package user_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/user"
)

func newTestEnv(t *testing.T) chi.Router {
	t.Helper()
	svc := user.NewService(store.NewMemoryStore())

	r := chi.NewRouter()
	r.Post("/api/v1/users", svc.HandleCreate)
	r.Get("/api/v1/users", svc.HandleList)
	r.Get("/api/v1/users/{userID}", svc.HandleGet)
	return r
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

func TestCreateUser(t *testing.T) {
	router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/users", user.CreateRequest{
		Email: "ana@example.com", Name: "Ana", Location: "Medellin", Role: model.RoleProsumer,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var u model.User
	json.Unmarshal(w.Body.Bytes(), &u)
	if u.ID == "" {
		t.Error("expected generated user ID")
	}

	w = doJSON(t, router, "GET", "/api/v1/users/"+u.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", w.Code)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	router := newTestEnv(t)

	req := user.CreateRequest{Email: "ana@example.com", Name: "Ana", Role: model.RoleProsumer}
	if w := doJSON(t, router, "POST", "/api/v1/users", req); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d", w.Code)
	}

	req.Name = "Other"
	w := doJSON(t, router, "POST", "/api/v1/users", req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("email_taken")) {
		t.Errorf("expected email_taken code, got %s", w.Body.String())
	}
}

func TestCreateUser_Validation(t *testing.T) {
	router := newTestEnv(t)

	cases := []struct {
		name string
		req  user.CreateRequest
	}{
		{"missing email", user.CreateRequest{Name: "Ana", Role: model.RoleProsumer}},
		{"missing name", user.CreateRequest{Email: "a@b.com", Role: model.RoleProsumer}},
		{"bad role", user.CreateRequest{Email: "a@b.com", Name: "Ana", Role: "admin"}},
	}
	for _, tc := range cases {
		w := doJSON(t, router, "POST", "/api/v1/users", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestListUsers(t *testing.T) {
	router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]\n" && body != "[]" {
		t.Errorf("empty list should encode as [], got %s", body)
	}

	doJSON(t, router, "POST", "/api/v1/users", user.CreateRequest{
		Email: "a@b.com", Name: "A", Role: model.RoleConsumer,
	})
	w = doJSON(t, router, "GET", "/api/v1/users", nil)
	var users []model.User
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
}
