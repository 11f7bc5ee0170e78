package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expensebook/internal/backend"
	"expensebook/internal/core"
)

func TestLoginExtractsAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["username"] != "ada" || body["password"] != "secret" {
			t.Errorf("unexpected credentials: %v", body)
		}
		http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: "tok-123"})
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user":    map[string]string{"id": "1", "username": "ada", "email": "ada@example.com"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	sess, err := c.Login(context.Background(), backend.Credentials{Username: "ada", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token != "tok-123" {
		t.Errorf("token = %q, want tok-123", sess.Token)
	}
	if sess.User.Username != "ada" || sess.User.ID != "1" {
		t.Errorf("user = %+v", sess.User)
	}
}

func TestLoginRejectedCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"msg": "wrong password"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Login(context.Background(), backend.Credentials{Username: "ada", Password: "nope"})
	if !errors.Is(err, backend.ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if got := err.Error(); !strings.Contains(got, "wrong password") {
		t.Errorf("error should carry the server message, got %q", got)
	}
}

func TestRequestsCarrySessionCookie(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie(AccessCookie); err == nil {
			gotCookie = ck.Value
		}
		json.NewEncoder(w).Encode(map[string]any{"expenses": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	ctx := backend.WithSession(context.Background(), backend.Session{Token: "tok-456"})
	if _, err := c.All(ctx); err != nil {
		t.Fatalf("All: %v", err)
	}
	if gotCookie != "tok-456" {
		t.Errorf("access cookie = %q, want tok-456", gotCookie)
	}
}

func TestAllMapsWireExpenses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"expenses": []map[string]any{
				{"id": "a", "title": "Groceries", "amount": 15.00, "category": "Food", "timestamp": "2025-07-14T09:30:00Z"},
				{"id": "b", "title": "Mystery", "amount": 3.00, "category": "Misc", "timestamp": "not-a-date"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	got, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Amount.Cents != 1500 || got[0].Timestamp.IsZero() {
		t.Errorf("first record = %+v", got[0])
	}
	if !got[1].Timestamp.IsZero() {
		t.Errorf("unparseable timestamp should stay zero, got %v", got[1].Timestamp)
	}
}

func TestRecentReturnsTailNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"expenses": []map[string]any{
				{"id": "1", "title": "a", "amount": 1.0, "category": "c", "timestamp": "2025-07-01"},
				{"id": "2", "title": "b", "amount": 1.0, "category": "c", "timestamp": "2025-07-02"},
				{"id": "3", "title": "c", "amount": 1.0, "category": "c", "timestamp": "2025-07-03"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	got, err := c.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("Recent = %v, want ids [3 2]", got)
	}
}

func TestUnauthenticatedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if _, err := c.All(context.Background()); !errors.Is(err, backend.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, nil)
	if _, err := c.All(context.Background()); !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestCreateSendsWireFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/expense/create" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	rec := expenseFixture()
	if err := c.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got["title"] != "Groceries" || got["categoryName"] != "Food" {
		t.Errorf("body = %v", got)
	}
	if got["amount"] != 15.0 || got["date"] != "2025-07-14" {
		t.Errorf("body = %v", got)
	}
}

func TestLogoutUsesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/logout" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestUpdateProfileUsesPost(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/updateProfile" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"profile": map[string]any{"username": "ada", "email": "ada@example.com", "target": 250.0},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	profile, err := c.UpdateProfile(context.Background(), core.Profile{
		Username: "ada",
		Email:    "ada@example.com",
		Target:   core.Money{Cents: 25000},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got["username"] != "ada" || got["target"] != 250.0 {
		t.Errorf("body = %v", got)
	}
	if profile.Target.Cents != 25000 {
		t.Errorf("target = %d, want 25000", profile.Target.Cents)
	}
}

func expenseFixture() core.ExpenseRecord {
	return core.ExpenseRecord{
		Title:     "Groceries",
		Amount:    core.Money{Cents: 1500},
		Category:  "Food",
		Timestamp: core.NewDate(2025, 7, 14),
	}
}
