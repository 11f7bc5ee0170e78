package subscriptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expensebook/internal/alerts"
	"expensebook/internal/amqp"
	"expensebook/internal/backend"
	"expensebook/internal/backend/memory"
	"expensebook/internal/core"
)

type captureWriter struct {
	mu      sync.Mutex
	created []core.ExpenseRecord
	err     error
}

func (w *captureWriter) Create(_ context.Context, rec core.ExpenseRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.created = append(w.created, rec)
	return nil
}

func (w *captureWriter) Update(context.Context, core.ExpenseRecord) error { return nil }
func (w *captureWriter) Delete(context.Context, string) error             { return nil }

func tracked(t *testing.T, m *Manager) string {
	t.Helper()
	creds := backend.Session{Token: "tok", User: core.User{ID: "u1", Username: "ada"}}
	m.Track(creds)
	return creds.User.ID
}

func at(y, mo, d int) time.Time {
	return time.Date(y, time.Month(mo), d, 12, 0, 0, 0, time.UTC)
}

func TestAddRequiresTrackedUser(t *testing.T) {
	m := NewManager(&captureWriter{}, nil)
	_, err := m.Add("ghost", "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 7, 1))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddRejectsUnknownInterval(t *testing.T) {
	m := NewManager(&captureWriter{}, nil)
	uid := tracked(t, m)
	_, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Interval("weekly"), core.NewDate(2025, 7, 1))
	if !errors.Is(err, ErrBadInterval) {
		t.Errorf("err = %v, want ErrBadInterval", err)
	}
}

func TestProcessDueChargesAndAdvances(t *testing.T) {
	w := &captureWriter{}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	if _, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 7, 1)); err != nil {
		t.Fatal(err)
	}

	n, err := m.ProcessDue(context.Background(), at(2025, 7, 1))
	if err != nil || n != 1 {
		t.Fatalf("ProcessDue = %d, %v, want 1 charge", n, err)
	}
	if len(w.created) != 1 || w.created[0].Title != "Netflix" || w.created[0].Timestamp.Wire() != "2025-07-01" {
		t.Errorf("created = %+v", w.created)
	}

	subs := m.List(uid)
	if subs[0].NextCharge.Wire() != "2025-08-01" {
		t.Errorf("next charge = %s, want 2025-08-01", subs[0].NextCharge.Wire())
	}

	// Nothing further due until the new date.
	n, _ = m.ProcessDue(context.Background(), at(2025, 7, 15))
	if n != 0 {
		t.Errorf("second run charged %d, want 0", n)
	}
}

func TestProcessDueCatchesUpMissedPeriods(t *testing.T) {
	w := &captureWriter{}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	if _, err := m.Add(uid, "Gym", core.Money{Cents: 3000}, "Health", core.Monthly, core.NewDate(2025, 5, 10)); err != nil {
		t.Fatal(err)
	}

	n, err := m.ProcessDue(context.Background(), at(2025, 7, 10))
	if err != nil || n != 3 {
		t.Fatalf("ProcessDue = %d, %v, want 3 catch-up charges", n, err)
	}
	dates := []string{}
	for _, rec := range w.created {
		dates = append(dates, rec.Timestamp.Wire())
	}
	want := []string{"2025-05-10", "2025-06-10", "2025-07-10"}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("charge dates = %v, want %v", dates, want)
		}
	}
}

func TestMonthEndClampingKeepsAnchor(t *testing.T) {
	w := &captureWriter{}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	if _, err := m.Add(uid, "Rent", core.Money{Cents: 90000}, "Housing", core.Monthly, core.NewDate(2025, 1, 31)); err != nil {
		t.Fatal(err)
	}

	if _, err := m.ProcessDue(context.Background(), at(2025, 1, 31)); err != nil {
		t.Fatal(err)
	}
	if got := m.List(uid)[0].NextCharge.Wire(); got != "2025-02-28" {
		t.Fatalf("next charge = %s, want clamped 2025-02-28", got)
	}

	if _, err := m.ProcessDue(context.Background(), at(2025, 2, 28)); err != nil {
		t.Fatal(err)
	}
	if got := m.List(uid)[0].NextCharge.Wire(); got != "2025-03-31" {
		t.Errorf("next charge = %s, anchor day should come back", got)
	}
}

func TestYearlyInterval(t *testing.T) {
	w := &captureWriter{}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	if _, err := m.Add(uid, "Domain", core.Money{Cents: 1200}, "Tech", core.Yearly, core.NewDate(2025, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ProcessDue(context.Background(), at(2025, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if got := m.List(uid)[0].NextCharge.Wire(); got != "2026-03-01" {
		t.Errorf("next charge = %s, want 2026-03-01", got)
	}
}

func TestPausedSubscriptionIsSkipped(t *testing.T) {
	w := &captureWriter{}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	sub, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 7, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetActive(uid, sub.ID, false); err != nil {
		t.Fatal(err)
	}

	n, _ := m.ProcessDue(context.Background(), at(2025, 7, 1))
	if n != 0 || len(w.created) != 0 {
		t.Errorf("paused subscription was charged: n=%d created=%v", n, w.created)
	}
}

func TestFailedChargeKeepsDueDate(t *testing.T) {
	w := &captureWriter{err: errors.New("backend down")}
	m := NewManager(w, nil)
	uid := tracked(t, m)

	if _, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 7, 1)); err != nil {
		t.Fatal(err)
	}

	n, _ := m.ProcessDue(context.Background(), at(2025, 7, 1))
	if n != 0 {
		t.Errorf("charged %d despite writer failure", n)
	}
	if got := m.List(uid)[0].NextCharge.Wire(); got != "2025-07-01" {
		t.Errorf("next charge moved to %s after failure", got)
	}

	// Recovery: the writer comes back, the charge lands on the next run.
	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	n, _ = m.ProcessDue(context.Background(), at(2025, 7, 2))
	if n != 1 {
		t.Errorf("recovered run charged %d, want 1", n)
	}
}

func TestRemove(t *testing.T) {
	m := NewManager(&captureWriter{}, nil)
	uid := tracked(t, m)

	sub, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 7, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(uid, sub.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if subs := m.List(uid); len(subs) != 0 {
		t.Errorf("subs after remove = %v", subs)
	}
	if err := m.Remove(uid, sub.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double remove = %v, want ErrNotFound", err)
	}
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.BudgetAlertMessage
}

func (p *capturePublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestChargePastTargetPublishesAlert(t *testing.T) {
	store := memory.New()
	sess, err := store.Register(context.Background(), backend.Registration{
		Username: "ada", Email: "ada@example.com", Password: "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := backend.WithSession(context.Background(), sess)
	if _, err := store.UpdateProfile(ctx, core.Profile{
		Username: "ada", Email: "ada@example.com", Target: core.Money{Cents: 50000},
	}); err != nil {
		t.Fatal(err)
	}

	pub := &capturePublisher{}
	monitor := alerts.NewMonitor(store, pub, nil)

	m := NewManager(store, nil)
	m.Track(sess)
	m.OnCharged = func(ctx context.Context, user core.User) {
		if err := monitor.Check(ctx, user); err != nil {
			t.Errorf("Check: %v", err)
		}
	}

	if _, err := m.Add(sess.User.ID, "Rent", core.Money{Cents: 90000}, "Housing", core.Monthly, core.NewDate(2025, 7, 1)); err != nil {
		t.Fatal(err)
	}

	n, err := m.ProcessDue(context.Background(), at(2025, 7, 1))
	if err != nil || n != 1 {
		t.Fatalf("ProcessDue = %d, %v, want 1 charge", n, err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d alerts, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.UserID != sess.User.ID || msg.SpentCents != 90000 || msg.TargetCents != 50000 {
		t.Errorf("alert = %+v", msg)
	}
}

func TestOnChargedSkippedWhenNothingDue(t *testing.T) {
	m := NewManager(&captureWriter{}, nil)
	uid := tracked(t, m)
	m.OnCharged = func(context.Context, core.User) {
		t.Error("OnCharged ran without a charge")
	}

	if _, err := m.Add(uid, "Netflix", core.Money{Cents: 800}, "Entertainment", core.Monthly, core.NewDate(2025, 8, 1)); err != nil {
		t.Fatal(err)
	}
	if n, _ := m.ProcessDue(context.Background(), at(2025, 7, 1)); n != 0 {
		t.Errorf("charged %d, want 0", n)
	}
}
