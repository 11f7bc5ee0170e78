// Package alerts watches monthly spending against each user's savings
// target and emits a budget alert event when the target is crossed.
package alerts

import (
	"context"
	"log/slog"
	"sync"

	"expensebook/internal/amqp"
	"expensebook/internal/backend"
	"expensebook/internal/core"
	"expensebook/internal/history"
	"expensebook/internal/log"
)

// Publisher is what the monitor needs from the message broker.
type Publisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

type reader interface {
	backend.ExpenseReader
	Profile(ctx context.Context) (core.Profile, error)
}

// Monitor checks spending after expense mutations. It publishes at
// most one alert per user and month, so edits inside an already
// alerted month stay quiet.
type Monitor struct {
	api       reader
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	alerted map[string]string // user id -> month already alerted
}

// NewMonitor builds a monitor. publisher may be nil; alerts are then
// logged but not published.
func NewMonitor(api reader, publisher Publisher, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		api:       api,
		publisher: publisher,
		logger:    logger,
		alerted:   make(map[string]string),
	}
}

// Check recomputes the user's latest month total and publishes an
// alert if it exceeds their target. ctx must carry the user's backend
// session.
func (m *Monitor) Check(ctx context.Context, user core.User) error {
	profile, err := m.api.Profile(ctx)
	if err != nil {
		return err
	}
	if profile.Target.Cents <= 0 {
		return nil
	}

	records, err := m.api.All(ctx)
	if err != nil {
		return err
	}
	h := history.Aggregate(records)
	month := h.LatestMonth()
	if month == "" {
		return nil
	}
	spent := h.MonthTotal(month)
	if spent.Cents <= profile.Target.Cents {
		m.forget(user.ID, month)
		return nil
	}

	if !m.mark(user.ID, month) {
		return nil
	}

	m.logger.InfoContext(ctx, "Budget target exceeded",
		log.FieldUserID, user.ID,
		log.FieldMonth, month,
		"spent_cents", spent.Cents,
		"target_cents", profile.Target.Cents)

	if m.publisher == nil {
		return nil
	}

	msg := amqp.NewBudgetAlertMessage(user.ID, user.Username, user.Email, month, spent.Cents, profile.Target.Cents)
	if err := m.publisher.PublishBudgetAlert(ctx, msg); err != nil {
		// Let a later mutation retry instead of swallowing the alert.
		m.forget(user.ID, month)
		return err
	}
	return nil
}

// mark records the alert and reports whether it is new.
func (m *Monitor) mark(userID, month string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alerted[userID] == month {
		return false
	}
	m.alerted[userID] = month
	return true
}

func (m *Monitor) forget(userID, month string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alerted[userID] == month {
		delete(m.alerted, userID)
	}
}
