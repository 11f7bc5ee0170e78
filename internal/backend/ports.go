// Package backend defines the ports the web layer talks to and a
// factory that wires a concrete adapter based on configuration.
package backend

import (
	"context"

	"expensebook/internal/core"
)

// ExpenseReader lists expenses for the authenticated user.
type ExpenseReader interface {
	// Recent returns the most recent expenses, newest first.
	Recent(ctx context.Context, limit int) ([]core.ExpenseRecord, error)
	// All returns every expense of the user, for history aggregation.
	All(ctx context.Context) ([]core.ExpenseRecord, error)
}

// ExpenseWriter mutates expenses for the authenticated user.
type ExpenseWriter interface {
	Create(ctx context.Context, record core.ExpenseRecord) error
	Update(ctx context.Context, record core.ExpenseRecord) error
	Delete(ctx context.Context, id string) error
}

// TotalReader reports the running total of the latest calendar month.
type TotalReader interface {
	LatestMonthTotal(ctx context.Context) (core.Money, error)
}

// Credentials carry a login attempt.
type Credentials struct {
	Username string
	Password string
}

// Registration carries a signup attempt.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Session is an authenticated backend session. Token is the opaque
// access token the adapter needs on subsequent calls.
type Session struct {
	Token string
	User  core.User
}

// Authenticator handles account lifecycle against the backend.
type Authenticator interface {
	Register(ctx context.Context, reg Registration) (Session, error)
	Login(ctx context.Context, creds Credentials) (Session, error)
	Check(ctx context.Context) (core.User, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (core.Profile, error)
	UpdateProfile(ctx context.Context, profile core.Profile) (core.Profile, error)
}

// Backend is the full surface the web handlers and the subscription
// processor depend on. Adapters implement it; callers should accept
// the narrowest interface that serves them.
type Backend interface {
	ExpenseReader
	ExpenseWriter
	TotalReader
	Authenticator
}
