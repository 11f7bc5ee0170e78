// Package memory is an in-process adapter used in tests and local
// development. It keeps every account and expense in maps guarded by
// a single mutex, which is plenty for its purpose.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"expensebook/internal/backend"
	"expensebook/internal/core"
)

type account struct {
	user     core.User
	password string
	profile  core.Profile
	expenses []core.ExpenseRecord
}

// Store implements backend.Backend entirely in memory.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by username
	sessions map[string]string   // token -> username
	nextID   int
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
	}
}

func (s *Store) Register(_ context.Context, reg backend.Registration) (backend.Session, error) {
	username := strings.TrimSpace(reg.Username)
	if username == "" || reg.Password == "" {
		return backend.Session{}, fmt.Errorf("%w: username and password are required", backend.ErrRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[username]; ok {
		return backend.Session{}, fmt.Errorf("%w: username already taken", backend.ErrRejected)
	}

	s.nextID++
	acct := &account{
		user:     core.User{ID: fmt.Sprintf("%d", s.nextID), Username: username, Email: reg.Email},
		password: reg.Password,
		profile:  core.Profile{Username: username, Email: reg.Email},
	}
	s.accounts[username] = acct
	return s.openSession(acct), nil
}

func (s *Store) Login(_ context.Context, creds backend.Credentials) (backend.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[creds.Username]
	if !ok || acct.password != creds.Password {
		return backend.Session{}, fmt.Errorf("%w: wrong username or password", backend.ErrRejected)
	}
	return s.openSession(acct), nil
}

func (s *Store) Check(ctx context.Context) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return core.User{}, err
	}
	return acct.user, nil
}

func (s *Store) Logout(ctx context.Context) error {
	sess, ok := backend.SessionFromContext(ctx)
	if !ok {
		return backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.Token)
	return nil
}

func (s *Store) Profile(ctx context.Context) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	return acct.profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile core.Profile) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	if strings.TrimSpace(profile.Username) != "" {
		acct.profile.Username = profile.Username
	}
	if strings.TrimSpace(profile.Email) != "" {
		acct.profile.Email = profile.Email
	}
	acct.profile.Description = profile.Description
	if profile.Target.Cents > 0 {
		acct.profile.Target = profile.Target
	}
	return acct.profile, nil
}

func (s *Store) Create(ctx context.Context, rec core.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrRejected, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return err
	}
	s.nextID++
	rec.ID = fmt.Sprintf("%d", s.nextID)
	acct.expenses = append(acct.expenses, rec)
	return nil
}

func (s *Store) Update(ctx context.Context, rec core.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrRejected, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return err
	}
	for i := range acct.expenses {
		if acct.expenses[i].ID == rec.ID {
			acct.expenses[i] = rec
			return nil
		}
	}
	return backend.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return err
	}
	for i := range acct.expenses {
		if acct.expenses[i].ID == id {
			acct.expenses = append(acct.expenses[:i], acct.expenses[i+1:]...)
			return nil
		}
	}
	return backend.ErrNotFound
}

// Recent returns the last limit expenses in reverse insertion order,
// so the newest entry comes first.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	n := len(acct.expenses)
	if limit > n {
		limit = n
	}
	out := make([]core.ExpenseRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, acct.expenses[i])
	}
	return out, nil
}

func (s *Store) All(ctx context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ExpenseRecord, len(acct.expenses))
	copy(out, acct.expenses)
	return out, nil
}

func (s *Store) LatestMonthTotal(ctx context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.authenticated(ctx)
	if err != nil {
		return core.Money{}, err
	}

	var latest string
	var latestKey int
	totals := make(map[string]int64)
	for _, rec := range acct.expenses {
		if rec.Timestamp.IsZero() {
			continue
		}
		label := rec.Timestamp.MonthLabel()
		key := rec.Timestamp.Year()*100 + int(rec.Timestamp.Month())
		totals[label] += rec.Amount.Cents
		if key > latestKey {
			latestKey = key
			latest = label
		}
	}
	return core.Money{Cents: totals[latest]}, nil
}

// authenticated resolves the context session to an account. Callers
// must hold s.mu.
func (s *Store) authenticated(ctx context.Context) (*account, error) {
	sess, ok := backend.SessionFromContext(ctx)
	if !ok {
		return nil, backend.ErrUnauthenticated
	}
	username, ok := s.sessions[sess.Token]
	if !ok {
		return nil, backend.ErrUnauthenticated
	}
	acct, ok := s.accounts[username]
	if !ok {
		return nil, backend.ErrUnauthenticated
	}
	return acct, nil
}

func (s *Store) openSession(acct *account) backend.Session {
	token := uuid.NewString()
	s.sessions[token] = acct.user.Username
	return backend.Session{Token: token, User: acct.user}
}
