// Package storage persists accounts and expenses in SQLite. It backs
// the self-contained deployment mode where no remote expense API is
// available.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNoRows signals an empty lookup without leaking database/sql.
var ErrNoRows = errors.New("storage: no rows")

// UserRow is a stored account, password hash included. The adapter on
// top decides what leaves this package.
type UserRow struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Description  string
	TargetCents  int64
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (UserRow, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash)
	if err != nil {
		return UserRow{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return UserRow{}, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", log.FieldUserID, id, "username", username)
	return UserRow{ID: id, Username: username, Email: email, PasswordHash: passwordHash}, nil
}

func (r *Repository) UserByUsername(ctx context.Context, username string) (UserRow, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, description, target_cents
		 FROM users WHERE username = ?`, username))
}

func (r *Repository) UserByID(ctx context.Context, id int64) (UserRow, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, description, target_cents
		 FROM users WHERE id = ?`, id))
}

func (r *Repository) scanUser(row *sql.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Description, &u.TargetCents)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, ErrNoRows
	}
	if err != nil {
		return UserRow{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *Repository) UpdateUserProfile(ctx context.Context, id int64, username, email, description string, targetCents int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, description = ?, target_cents = ? WHERE id = ?`,
		username, email, description, targetCents, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (r *Repository) CreateExpense(ctx context.Context, userID int64, rec core.ExpenseRecord) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, title, amount_cents, category, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, rec.Title, rec.Amount.Cents, rec.Category, rec.Timestamp.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		log.FieldExpenseID, id,
		log.FieldUserID, userID,
		log.FieldTitle, rec.Title,
		log.FieldAmountCents, rec.Amount.Cents,
		log.FieldCategory, rec.Category)

	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) UpdateExpense(ctx context.Context, userID int64, rec core.ExpenseRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount_cents = ?, category = ?, timestamp = ?
		 WHERE id = ? AND user_id = ?`,
		rec.Title, rec.Amount.Cents, rec.Category, rec.Timestamp.Format(time.RFC3339),
		rec.ID, userID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, userID int64, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// ListExpenses returns a user's expenses in insertion order. limit <= 0
// means no limit; with a limit the newest rows come first.
func (r *Repository) ListExpenses(ctx context.Context, userID int64, limit int) ([]core.ExpenseRecord, error) {
	query := `SELECT id, title, amount_cents, category, timestamp
	          FROM expenses WHERE user_id = ? ORDER BY id`
	args := []any{userID}
	if limit > 0 {
		query = `SELECT id, title, amount_cents, category, timestamp
		         FROM expenses WHERE user_id = ? ORDER BY id DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		var (
			id    int64
			rec   core.ExpenseRecord
			cents int64
			rawTS string
		)
		if err := rows.Scan(&id, &rec.Title, &cents, &rec.Category, &rawTS); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.Amount = core.Money{Cents: cents}
		if ts, err := core.ParseTimestamp(rawTS); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// LatestMonthTotal sums the calendar month that sorts last among the
// user's expense timestamps.
func (r *Repository) LatestMonthTotal(ctx context.Context, userID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE user_id = ?
		   AND substr(timestamp, 1, 7) = (
		       SELECT MAX(substr(timestamp, 1, 7)) FROM expenses WHERE user_id = ?
		   )`,
		userID, userID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("latest month total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
