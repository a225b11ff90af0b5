package store

import (
	"context"
	"embed"
	"log/slog"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// The schema is small and lives in one file per driver:
//   store/migration/{driver}/LATEST.sql
// A fresh database gets LATEST.sql applied. Every statement is written
// with IF NOT EXISTS so re-applying it on an initialized database is a no-op.

//go:embed migration
var migrationFS embed.FS

const (
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"
)

// Migrate makes sure the schema for the configured driver exists.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		slog.Debug("database already initialized", slog.String("driver", s.profile.Driver))
		return nil
	}

	filePath := "migration/" + s.profile.Driver + "/" + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file %s", filePath)
	}

	if _, err := s.driver.GetDB().ExecContext(ctx, string(bytes)); err != nil {
		return errors.Wrapf(err, "failed to apply latest schema for %s", s.profile.Driver)
	}
	slog.Info("database schema applied", slog.String("driver", s.profile.Driver))
	return nil
}
