package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// UserThread model related methods.
	// GetUserThread returns nil without error when no mapping exists.
	UpsertUserThread(ctx context.Context, upsert *UpsertUserThread) (*UserThread, error)
	GetUserThread(ctx context.Context, find *FindUserThread) (*UserThread, error)

	// UserPreferences model related methods.
	// GetUserPreferences returns nil without error when nothing was stored yet.
	UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error)
	GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error)
}
