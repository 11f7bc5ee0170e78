// Package subscriptions materializes recurring charges into real
// expenses. A subscription is a template; on each due date an expense
// is created through the same writer port the dashboard uses, so the
// charge shows up everywhere an ordinary expense would.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"expensebook/internal/backend"
	"expensebook/internal/core"
	"expensebook/internal/log"
)

var (
	ErrNotFound    = errors.New("subscriptions: not found")
	ErrBadInterval = errors.New("subscriptions: interval must be monthly or yearly")
)

// Subscription is one recurring charge template.
type Subscription struct {
	ID         string
	Title      string
	Amount     core.Money
	Category   string
	Interval   core.Interval
	NextCharge core.Date
	Active     bool

	// anchorDay is the day-of-month the subscription started on, so
	// a charge on Jan 31 lands on Feb 28 and back on Mar 31.
	anchorDay int
}

type userSubs struct {
	creds backend.Session
	subs  []*Subscription
}

// Manager keeps each user's subscriptions and charges the due ones.
type Manager struct {
	writer backend.ExpenseWriter
	logger *slog.Logger

	// OnCharged, when set, runs once per user after ProcessDue created
	// at least one expense for them. ctx carries the user's backend
	// session. Set it before the first ProcessDue call.
	OnCharged func(ctx context.Context, user core.User)

	mu    sync.Mutex
	users map[string]*userSubs // keyed by backend user id
}

func NewManager(writer backend.ExpenseWriter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		writer: writer,
		logger: logger,
		users:  make(map[string]*userSubs),
	}
}

// Track registers a user's backend credentials so ProcessDue can
// charge on their behalf. Called at login; refreshing an existing
// user's credentials keeps their subscriptions.
func (m *Manager) Track(creds backend.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[creds.User.ID]
	if !ok {
		u = &userSubs{}
		m.users[creds.User.ID] = u
	}
	u.creds = creds
}

// Add creates a subscription starting at start. The first charge is
// due at start itself.
func (m *Manager) Add(userID, title string, amount core.Money, category string, interval core.Interval, start core.Date) (Subscription, error) {
	if interval != core.Monthly && interval != core.Yearly {
		return Subscription{}, ErrBadInterval
	}
	rec := core.ExpenseRecord{Title: title, Amount: amount, Category: category, Timestamp: start}
	if err := rec.Validate(); err != nil {
		return Subscription{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: user %s not tracked", ErrNotFound, userID)
	}

	sub := &Subscription{
		ID:         uuid.NewString(),
		Title:      title,
		Amount:     amount,
		Category:   category,
		Interval:   interval,
		NextCharge: start,
		Active:     true,
		anchorDay:  start.Day(),
	}
	u.subs = append(u.subs, sub)
	return *sub, nil
}

// List returns copies of the user's subscriptions in creation order.
func (m *Manager) List(userID string) []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	out := make([]Subscription, len(u.subs))
	for i, s := range u.subs {
		out[i] = *s
	}
	return out
}

// Remove deletes a subscription.
func (m *Manager) Remove(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for i, s := range u.subs {
		if s.ID == id {
			u.subs = append(u.subs[:i], u.subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// SetActive pauses or resumes a subscription. A paused subscription
// keeps its next charge date and resumes from there.
func (m *Manager) SetActive(userID, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, s := range u.subs {
		if s.ID == id {
			s.Active = active
			return nil
		}
	}
	return ErrNotFound
}

// ProcessDue charges every active subscription whose next charge date
// is at or before now, catching up missed periods one expense at a
// time. It returns how many expenses were created. A failing charge
// is logged and retried on the next run; it never blocks other users.
func (m *Manager) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	type job struct {
		creds backend.Session
		subs  []*Subscription
	}
	var jobs []job
	checked := 0
	for _, u := range m.users {
		j := job{creds: u.creds}
		for _, s := range u.subs {
			if s.Active {
				j.subs = append(j.subs, s)
				checked++
			}
		}
		if len(j.subs) > 0 {
			jobs = append(jobs, j)
		}
	}
	m.mu.Unlock()

	charged := 0
	for _, j := range jobs {
		userCtx := backend.WithSession(ctx, j.creds)
		userCharged := 0
		for _, sub := range j.subs {
			n, err := m.chargeDue(userCtx, sub, now)
			userCharged += n
			if err != nil {
				m.logger.ErrorContext(ctx, "Subscription charge failed",
					log.FieldSubscriptionID, sub.ID,
					log.FieldTitle, sub.Title,
					log.FieldError, err)
			}
		}
		charged += userCharged
		if userCharged > 0 && m.OnCharged != nil {
			m.OnCharged(userCtx, j.creds.User)
		}
	}

	if charged > 0 {
		m.logger.InfoContext(ctx, "Subscription processing complete",
			"charged", charged,
			"checked", checked)
	}
	return charged, nil
}

func (m *Manager) chargeDue(ctx context.Context, sub *Subscription, now time.Time) (int, error) {
	charged := 0
	for {
		m.mu.Lock()
		due := sub.Active && !sub.NextCharge.After(now)
		chargeDate := sub.NextCharge
		m.mu.Unlock()
		if !due {
			return charged, nil
		}

		rec := core.ExpenseRecord{
			Title:     sub.Title,
			Amount:    sub.Amount,
			Category:  sub.Category,
			Timestamp: chargeDate,
		}
		if err := m.writer.Create(ctx, rec); err != nil {
			return charged, err
		}
		charged++

		m.mu.Lock()
		sub.NextCharge = nextCharge(sub.NextCharge, sub.Interval, sub.anchorDay)
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "Charged subscription",
			log.FieldSubscriptionID, sub.ID,
			log.FieldTitle, sub.Title,
			log.FieldAmountCents, sub.Amount.Cents,
			"charge_date", chargeDate.Wire())
	}
}

// nextCharge advances one period, clamping to the shorter month while
// remembering the anchor day.
func nextCharge(d core.Date, interval core.Interval, anchorDay int) core.Date {
	year, month := d.Year(), int(d.Month())
	if interval == core.Yearly {
		year++
	} else {
		month++
		if month > 12 {
			month = 1
			year++
		}
	}

	day := anchorDay
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
