package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"expensebook/internal/backend"
	"expensebook/internal/core"
	"expensebook/internal/storage"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return New(repo, "test-secret")
}

func register(t *testing.T, a *Adapter, username string) (context.Context, backend.Session) {
	t.Helper()

	sess, err := a.Register(context.Background(), backend.Registration{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return backend.WithSession(context.Background(), sess), sess
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAdapter(t)
	_, sess := register(t, a, "ada")

	if sess.Token == "" {
		t.Fatal("Register() returned an empty token")
	}
	if sess.User.Username != "ada" {
		t.Errorf("User.Username = %q, want ada", sess.User.Username)
	}

	again, err := a.Login(context.Background(), backend.Credentials{Username: "ada", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if again.User.ID != sess.User.ID {
		t.Errorf("Login() user id = %q, want %q", again.User.ID, sess.User.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestAdapter(t)
	register(t, a, "ada")

	_, err := a.Login(context.Background(), backend.Credentials{Username: "ada", Password: "wrong"})
	if !errors.Is(err, backend.ErrRejected) {
		t.Errorf("Login(wrong password) error = %v, want ErrRejected", err)
	}
}

func TestTokenAuthenticatesOperations(t *testing.T) {
	a := newTestAdapter(t)
	ctx, _ := register(t, a, "ada")

	ts, _ := core.ParseTimestamp("2026-08-15")
	rec := core.ExpenseRecord{
		Title:     "Groceries",
		Amount:    core.Money{Cents: 4250},
		Category:  "Food",
		Timestamp: ts,
	}
	if err := a.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := a.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 1 || all[0].Title != "Groceries" {
		t.Errorf("All() = %+v, want one Groceries record", all)
	}

	total, err := a.LatestMonthTotal(ctx)
	if err != nil {
		t.Fatalf("LatestMonthTotal() error = %v", err)
	}
	if total.Cents != 4250 {
		t.Errorf("LatestMonthTotal() = %d, want 4250", total.Cents)
	}
}

func TestMissingOrForgedTokenIsUnauthenticated(t *testing.T) {
	a := newTestAdapter(t)
	register(t, a, "ada")

	if _, err := a.All(context.Background()); !errors.Is(err, backend.ErrUnauthenticated) {
		t.Errorf("All() without session error = %v, want ErrUnauthenticated", err)
	}

	forged := backend.WithSession(context.Background(), backend.Session{Token: "not-a-jwt"})
	if _, err := a.Check(forged); !errors.Is(err, backend.ErrUnauthenticated) {
		t.Errorf("Check() with forged token error = %v, want ErrUnauthenticated", err)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	a := newTestAdapter(t)
	adaCtx, _ := register(t, a, "ada")
	bobCtx, _ := register(t, a, "bob")

	ts, _ := core.ParseTimestamp("2026-08-15")
	if err := a.Create(adaCtx, core.ExpenseRecord{
		Title: "Rent", Amount: core.Money{Cents: 90000}, Category: "Housing", Timestamp: ts,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	bobsView, err := a.All(bobCtx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(bobsView) != 0 {
		t.Errorf("bob sees %d records, want 0", len(bobsView))
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	a := newTestAdapter(t)
	ctx, _ := register(t, a, "ada")

	updated, err := a.UpdateProfile(ctx, core.Profile{
		Description: "saving for a bike",
		Target:      core.Money{Cents: 30000},
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Username != "ada" {
		t.Errorf("Username = %q, want unchanged ada", updated.Username)
	}
	if updated.Target.Cents != 30000 || updated.Description != "saving for a bike" {
		t.Errorf("UpdateProfile() = %+v, want target and description persisted", updated)
	}
}

func TestUpdateMissingExpenseNotFound(t *testing.T) {
	a := newTestAdapter(t)
	ctx, _ := register(t, a, "ada")

	ts, _ := core.ParseTimestamp("2026-08-15")
	rec := core.ExpenseRecord{
		ID: "9999", Title: "Ghost", Amount: core.Money{Cents: 100}, Category: "Misc", Timestamp: ts,
	}
	if err := a.Update(ctx, rec); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if err := a.Delete(ctx, "9999"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}
