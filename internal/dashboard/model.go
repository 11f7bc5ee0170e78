// Package dashboard holds the per-session state behind the dashboard
// view: the recent expense list, its draft editor and the bookkeeping
// that keeps concurrent mutations from stepping on each other.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"expensebook/internal/backend"
	"expensebook/internal/core"
)

// RecentLimit is how many expenses the dashboard shows.
const RecentLimit = 6

var (
	// ErrNoDraft is returned when a field update or submit arrives
	// without an open draft.
	ErrNoDraft = errors.New("dashboard: no open draft")

	// ErrBusy is returned when a submit arrives while a previous
	// submission is still in flight.
	ErrBusy = errors.New("dashboard: submission in flight")

	// ErrIndexOutOfRange is returned for row operations on an index
	// that does not exist.
	ErrIndexOutOfRange = errors.New("dashboard: index out of range")

	// ErrUnknownField is returned for draft fields the form does not have.
	ErrUnknownField = errors.New("dashboard: unknown draft field")

	// ErrDeletePending is returned when a row already has a delete in flight.
	ErrDeletePending = errors.New("dashboard: delete already pending")

	// ErrRefreshFailed wraps a refetch error after a successful save.
	// The expense was written; only the follow-up reload failed.
	ErrRefreshFailed = errors.New("dashboard: saved but refresh failed")
)

type api interface {
	backend.ExpenseReader
	backend.ExpenseWriter
}

// Draft is the editable form state for a create or edit in progress.
// Fields stay raw strings until submit so the user can type freely.
type Draft struct {
	Title    string
	Amount   string
	Category string
	Date     string
}

// Model owns the dashboard expense list for one session. All methods
// are safe for concurrent use; backend calls run without the lock held
// so a slow request never blocks reads from other handlers.
type Model struct {
	api api

	mu            sync.Mutex
	items         []core.ExpenseRecord
	draft         *Draft
	editID        string
	inflight      bool
	pendingDelete map[string]struct{}
	seq           uint64
	applied       uint64
	lastErr       error
}

// NewModel returns an empty model backed by the given adapter.
// Call Refresh to populate it.
func NewModel(api api) *Model {
	return &Model{
		api:           api,
		pendingDelete: make(map[string]struct{}),
	}
}

// Items returns a copy of the current rows, newest first.
func (m *Model) Items() []core.ExpenseRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.ExpenseRecord, len(m.items))
	copy(out, m.items)
	return out
}

// Draft returns the open draft, or nil when none is open.
func (m *Model) Draft() *Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return nil
	}
	d := *m.draft
	return &d
}

// Editing reports the id of the record being edited, or "" for a
// create draft or no draft at all.
func (m *Model) Editing() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editID
}

// InFlight reports whether a submission is currently running.
func (m *Model) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}

// PendingDelete reports whether the row at index has a delete in flight.
func (m *Model) PendingDelete(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return false
	}
	_, ok := m.pendingDelete[m.items[index].ID]
	return ok
}

// LastError returns the error recorded by the most recent failed
// operation, cleared by the next successful one.
func (m *Model) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// BeginCreate opens an empty create draft. Opening while another draft
// is already open is a no-op, so a double click cannot wipe typed input.
func (m *Model) BeginCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft != nil {
		return
	}
	m.draft = &Draft{}
	m.editID = ""
}

// BeginEdit opens an edit draft pre-filled from the row at index,
// replacing any draft already open.
func (m *Model) BeginEdit(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return ErrIndexOutOfRange
	}
	rec := m.items[index]
	m.draft = &Draft{
		Title:    rec.Title,
		Amount:   strconv.FormatFloat(rec.Amount.Float(), 'f', 2, 64),
		Category: rec.Category,
		Date:     rec.Timestamp.Wire(),
	}
	m.editID = rec.ID
	return nil
}

// CancelDraft discards the open draft, if any.
func (m *Model) CancelDraft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = nil
	m.editID = ""
}

// UpdateDraftField sets one field of the open draft without
// validating it. Validation happens at submit.
func (m *Model) UpdateDraftField(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return ErrNoDraft
	}
	switch field {
	case "title":
		m.draft.Title = value
	case "amount":
		m.draft.Amount = value
	case "category":
		m.draft.Category = value
	case "date":
		m.draft.Date = value
	default:
		return ErrUnknownField
	}
	return nil
}

// SubmitCreate validates the open draft and sends it to the backend.
// An invalid draft fails before any backend call and stays open with
// the typed values intact. On success the draft closes and the list
// refetches.
func (m *Model) SubmitCreate(ctx context.Context) error {
	return m.submit(ctx, false)
}

// SubmitEdit is SubmitCreate for a draft opened with BeginEdit.
func (m *Model) SubmitEdit(ctx context.Context) error {
	return m.submit(ctx, true)
}

func (m *Model) submit(ctx context.Context, edit bool) error {
	m.mu.Lock()
	if m.draft == nil {
		m.mu.Unlock()
		return ErrNoDraft
	}
	if m.inflight {
		m.mu.Unlock()
		return ErrBusy
	}
	rec, err := m.draft.record()
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	if edit {
		if m.editID == "" {
			m.mu.Unlock()
			return ErrNoDraft
		}
		rec.ID = m.editID
	}
	m.inflight = true
	m.mu.Unlock()

	if edit {
		err = m.api.Update(ctx, rec)
	} else {
		err = m.api.Create(ctx, rec)
	}

	m.mu.Lock()
	m.inflight = false
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	m.draft = nil
	m.editID = ""
	m.lastErr = nil
	m.mu.Unlock()

	if err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return nil
}

// Remove deletes the row at index. The row is marked pending while the
// call runs; on failure the mark is cleared and the row stays.
func (m *Model) Remove(ctx context.Context, index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return ErrIndexOutOfRange
	}
	id := m.items[index].ID
	if _, ok := m.pendingDelete[id]; ok {
		m.mu.Unlock()
		return ErrDeletePending
	}
	m.pendingDelete[id] = struct{}{}
	m.mu.Unlock()

	err := m.api.Delete(ctx, id)

	m.mu.Lock()
	delete(m.pendingDelete, id)
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	m.lastErr = nil
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Reorder moves the row at from to position to. The change is purely
// local and the next Refresh restores backend order.
func (m *Model) Reorder(from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	rec := m.items[from]
	rest := append(m.items[:from:from], m.items[from+1:]...)
	m.items = append(rest[:to:to], append([]core.ExpenseRecord{rec}, rest[to:]...)...)
	return nil
}

// Refresh refetches the recent list. Each call gets a sequence number
// when it starts; a response whose number is older than the last one
// applied is discarded, so overlapping refetches cannot reorder into
// a stale view.
func (m *Model) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.seq++
	ticket := m.seq
	m.mu.Unlock()

	items, err := m.api.Recent(ctx, RecentLimit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket <= m.applied {
		return nil
	}
	if err != nil {
		m.lastErr = err
		return err
	}
	m.applied = ticket
	m.items = items
	for id := range m.pendingDelete {
		if !m.contains(id) {
			delete(m.pendingDelete, id)
		}
	}
	return nil
}

func (m *Model) contains(id string) bool {
	for _, rec := range m.items {
		if rec.ID == id {
			return true
		}
	}
	return false
}

func (d *Draft) record() (core.ExpenseRecord, error) {
	cents, err := core.ParseDecimalToCents(d.Amount)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("amount: %w", err)
	}
	ts, err := core.ParseTimestamp(d.Date)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("date: %w", err)
	}
	rec := core.ExpenseRecord{
		Title:     d.Title,
		Amount:    core.Money{Cents: cents},
		Category:  d.Category,
		Timestamp: ts,
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}
