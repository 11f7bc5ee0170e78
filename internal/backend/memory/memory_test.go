package memory

import (
	"context"
	"errors"
	"testing"

	"expensebook/internal/backend"
	"expensebook/internal/core"
)

func register(t *testing.T, s *Store, username string) context.Context {
	t.Helper()
	sess, err := s.Register(context.Background(), backend.Registration{
		Username: username,
		Email:    username + "@example.com",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return backend.WithSession(context.Background(), sess)
}

func TestRegisterLoginLogout(t *testing.T) {
	s := New()
	ctx := register(t, s, "ada")

	if _, err := s.Register(context.Background(), backend.Registration{Username: "ada", Password: "pw"}); !errors.Is(err, backend.ErrRejected) {
		t.Errorf("duplicate register = %v, want ErrRejected", err)
	}

	if _, err := s.Login(context.Background(), backend.Credentials{Username: "ada", Password: "wrong"}); !errors.Is(err, backend.ErrRejected) {
		t.Errorf("bad password = %v, want ErrRejected", err)
	}

	user, err := s.Check(ctx)
	if err != nil || user.Username != "ada" {
		t.Fatalf("Check = %+v, %v", user, err)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := s.Check(ctx); !errors.Is(err, backend.ErrUnauthenticated) {
		t.Errorf("Check after logout = %v, want ErrUnauthenticated", err)
	}
}

func TestExpensesAreScopedPerUser(t *testing.T) {
	s := New()
	ada := register(t, s, "ada")
	bob := register(t, s, "bob")

	rec := core.ExpenseRecord{
		Title:     "Groceries",
		Amount:    core.Money{Cents: 1500},
		Category:  "Food",
		Timestamp: core.NewDate(2025, 7, 14),
	}
	if err := s.Create(ada, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := s.All(ada)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ada's expenses = %v, %v", mine, err)
	}
	theirs, err := s.All(bob)
	if err != nil || len(theirs) != 0 {
		t.Fatalf("bob's expenses = %v, %v", theirs, err)
	}

	if err := s.Delete(bob, mine[0].ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("cross-user delete = %v, want ErrNotFound", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := New()
	ctx := register(t, s, "ada")

	for _, title := range []string{"a", "b", "c"} {
		err := s.Create(ctx, core.ExpenseRecord{
			Title:     title,
			Amount:    core.Money{Cents: 100},
			Category:  "Misc",
			Timestamp: core.NewDate(2025, 7, 1),
		})
		if err != nil {
			t.Fatalf("Create(%s): %v", title, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Title != "c" || got[1].Title != "b" {
		t.Errorf("Recent = %+v, want c then b", got)
	}
}

func TestLatestMonthTotal(t *testing.T) {
	s := New()
	ctx := register(t, s, "ada")

	add := func(cents int64, y, m int) {
		t.Helper()
		err := s.Create(ctx, core.ExpenseRecord{
			Title:     "x",
			Amount:    core.Money{Cents: cents},
			Category:  "Misc",
			Timestamp: core.NewDate(y, m, 1),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add(1000, 2025, 6)
	add(200, 2025, 7)
	add(300, 2025, 7)

	total, err := s.LatestMonthTotal(ctx)
	if err != nil {
		t.Fatalf("LatestMonthTotal: %v", err)
	}
	if total.Cents != 500 {
		t.Errorf("total = %d, want 500", total.Cents)
	}
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	s := New()
	ctx := register(t, s, "ada")

	got, err := s.UpdateProfile(ctx, core.Profile{Description: "saving up", Target: core.Money{Cents: 50000}})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.Username != "ada" || got.Email != "ada@example.com" {
		t.Errorf("identity fields should survive a partial update: %+v", got)
	}
	if got.Description != "saving up" || got.Target.Cents != 50000 {
		t.Errorf("profile = %+v", got)
	}
}
