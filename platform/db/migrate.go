package db

import (
	"context"
	"fmt"
	"io/fs"

	"lead_outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations found in migrations.
// The pool is borrowed through database/sql and left open.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, log *logger.Logger) error {
	if pool == nil || migrations == nil {
		return nil
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, res := range results {
		log.Info("migration applied", "version", res.Source.Version, "file", res.Source.Path, "duration", res.Duration)
	}
	return nil
}
