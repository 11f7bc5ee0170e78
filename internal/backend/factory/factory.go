// Package factory builds a concrete backend adapter from
// configuration so the entry points stay free of wiring detail.
package factory

import (
	"fmt"
	"log/slog"

	"expensebook/internal/backend"
	"expensebook/internal/backend/memory"
	"expensebook/internal/backend/rest"
	"expensebook/internal/backend/sqlite"
	"expensebook/internal/storage"
)

// Type selects which adapter to build.
type Type string

const (
	RemoteBackend Type = "remote"
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case RemoteBackend, SQLiteBackend, MemoryBackend:
		return true
	}
	return false
}

// Config carries what the factory needs.
type Config struct {
	Type       Type
	APIBaseURL string
	SQLitePath string
	JWTSecret  string
}

// Cleanup releases adapter resources. May be nil.
type Cleanup func() error

// Result pairs an adapter with its cleanup hook.
type Result struct {
	Backend backend.Backend
	Cleanup Cleanup
}

func New(logger *slog.Logger, config Config) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case RemoteBackend:
		if config.APIBaseURL == "" {
			return nil, fmt.Errorf("remote backend requires an API base URL")
		}
		logger.Info("Initialized remote backend", "base_url", config.APIBaseURL)
		return &Result{Backend: rest.New(config.APIBaseURL, nil)}, nil

	case SQLiteBackend:
		repo, err := storage.NewRepository(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized sqlite backend", "db_path", config.SQLitePath)
		return &Result{
			Backend: sqlite.New(repo, config.JWTSecret),
			Cleanup: repo.Close,
		}, nil

	default:
		logger.Info("Initialized memory backend")
		return &Result{Backend: memory.New()}, nil
	}
}
