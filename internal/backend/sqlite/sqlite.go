// Package sqlite adapts the storage repository to the backend ports,
// adding password hashing and token handling so the app can run
// without a remote expense API.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"expensebook/internal/backend"
	"expensebook/internal/core"
	"expensebook/internal/storage"
)

const tokenTTL = 24 * time.Hour

type Adapter struct {
	repo   *storage.Repository
	secret []byte
}

func New(repo *storage.Repository, secret string) *Adapter {
	return &Adapter{repo: repo, secret: []byte(secret)}
}

func (a *Adapter) Register(ctx context.Context, reg backend.Registration) (backend.Session, error) {
	username := strings.TrimSpace(reg.Username)
	if username == "" || reg.Password == "" {
		return backend.Session{}, fmt.Errorf("%w: username and password are required", backend.ErrRejected)
	}

	if _, err := a.repo.UserByUsername(ctx, username); err == nil {
		return backend.Session{}, fmt.Errorf("%w: username already taken", backend.ErrRejected)
	} else if !errors.Is(err, storage.ErrNoRows) {
		return backend.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return backend.Session{}, fmt.Errorf("hash password: %w", err)
	}

	row, err := a.repo.CreateUser(ctx, username, reg.Email, string(hash))
	if err != nil {
		return backend.Session{}, err
	}
	return a.openSession(row)
}

func (a *Adapter) Login(ctx context.Context, creds backend.Credentials) (backend.Session, error) {
	row, err := a.repo.UserByUsername(ctx, creds.Username)
	if errors.Is(err, storage.ErrNoRows) {
		return backend.Session{}, fmt.Errorf("%w: wrong username or password", backend.ErrRejected)
	}
	if err != nil {
		return backend.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(creds.Password)) != nil {
		return backend.Session{}, fmt.Errorf("%w: wrong username or password", backend.ErrRejected)
	}
	return a.openSession(row)
}

func (a *Adapter) Check(ctx context.Context) (core.User, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return core.User{}, err
	}
	return userFromRow(row), nil
}

// Logout is a no-op here: tokens are stateless and expire on their
// own, the web layer clears its cookie.
func (a *Adapter) Logout(ctx context.Context) error {
	return nil
}

func (a *Adapter) Profile(ctx context.Context) (core.Profile, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	return profileFromRow(row), nil
}

func (a *Adapter) UpdateProfile(ctx context.Context, profile core.Profile) (core.Profile, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return core.Profile{}, err
	}

	username := row.Username
	if strings.TrimSpace(profile.Username) != "" {
		username = profile.Username
	}
	email := row.Email
	if strings.TrimSpace(profile.Email) != "" {
		email = profile.Email
	}
	target := row.TargetCents
	if profile.Target.Cents > 0 {
		target = profile.Target.Cents
	}

	if err := a.repo.UpdateUserProfile(ctx, row.ID, username, email, profile.Description, target); err != nil {
		return core.Profile{}, err
	}

	updated, err := a.repo.UserByID(ctx, row.ID)
	if err != nil {
		return core.Profile{}, err
	}
	return profileFromRow(updated), nil
}

func (a *Adapter) Create(ctx context.Context, rec core.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrRejected, err)
	}
	row, err := a.authenticated(ctx)
	if err != nil {
		return err
	}
	_, err = a.repo.CreateExpense(ctx, row.ID, rec)
	return err
}

func (a *Adapter) Update(ctx context.Context, rec core.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrRejected, err)
	}
	row, err := a.authenticated(ctx)
	if err != nil {
		return err
	}
	err = a.repo.UpdateExpense(ctx, row.ID, rec)
	if errors.Is(err, storage.ErrNoRows) {
		return backend.ErrNotFound
	}
	return err
}

func (a *Adapter) Delete(ctx context.Context, id string) error {
	row, err := a.authenticated(ctx)
	if err != nil {
		return err
	}
	err = a.repo.DeleteExpense(ctx, row.ID, id)
	if errors.Is(err, storage.ErrNoRows) {
		return backend.ErrNotFound
	}
	return err
}

func (a *Adapter) Recent(ctx context.Context, limit int) ([]core.ExpenseRecord, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return a.repo.ListExpenses(ctx, row.ID, limit)
}

func (a *Adapter) All(ctx context.Context) ([]core.ExpenseRecord, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return a.repo.ListExpenses(ctx, row.ID, 0)
}

func (a *Adapter) LatestMonthTotal(ctx context.Context) (core.Money, error) {
	row, err := a.authenticated(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return a.repo.LatestMonthTotal(ctx, row.ID)
}

func (a *Adapter) openSession(row storage.UserRow) (backend.Session, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(row.ID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return backend.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return backend.Session{Token: token, User: userFromRow(row)}, nil
}

func (a *Adapter) authenticated(ctx context.Context) (storage.UserRow, error) {
	sess, ok := backend.SessionFromContext(ctx)
	if !ok || sess.Token == "" {
		return storage.UserRow{}, backend.ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(sess.Token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return storage.UserRow{}, backend.ErrUnauthenticated
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return storage.UserRow{}, backend.ErrUnauthenticated
	}

	row, err := a.repo.UserByID(ctx, id)
	if errors.Is(err, storage.ErrNoRows) {
		return storage.UserRow{}, backend.ErrUnauthenticated
	}
	return row, err
}

func userFromRow(row storage.UserRow) core.User {
	return core.User{
		ID:       strconv.FormatInt(row.ID, 10),
		Username: row.Username,
		Email:    row.Email,
	}
}

func profileFromRow(row storage.UserRow) core.Profile {
	return core.Profile{
		Username:    row.Username,
		Email:       row.Email,
		Description: row.Description,
		Target:      core.Money{Cents: row.TargetCents},
	}
}
