package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

type (
	// Interval is the repetition period of a subscription charge.
	Interval string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseRecord is a single persisted (or about-to-be persisted)
	// expense. ID is assigned by the backend and is empty for drafts.
	ExpenseRecord struct {
		ID        string
		Title     string
		Amount    Money
		Category  string
		Timestamp Date
	}

	// User identifies an authenticated account as reported by the backend.
	User struct {
		ID       string
		Username string
		Email    string
	}

	// Profile is the editable part of an account, including the monthly
	// savings target used by the alert monitor.
	Profile struct {
		Username    string
		Email       string
		Description string
		Target      Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// timestampLayouts are the ISO-like formats the backend is known to emit.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-like timestamp string from the backend.
// Returns ErrInvalidTimestamp when no known layout matches.
func ParseTimestamp(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidTimestamp
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// MonthLabel formats the date as a long month name plus a four-digit
// year (e.g. "July 2025"). The year is part of the label so the same
// month in different years never collides as a grouping key.
func (d Date) MonthLabel() string {
	return d.Format("January 2006")
}

// Wire formats the date the way the backend expects it ("YYYY-MM-DD").
func (d Date) Wire() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e ExpenseRecord) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Timestamp.Validate(); err != nil {
		return err
	}
	return nil
}

func (iv Interval) Valid() bool {
	switch iv {
	case Monthly, Yearly:
		return true
	default:
		return false
	}
}
