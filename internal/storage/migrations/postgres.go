package migrations

import (
	"context"
	"fmt"
	"strings"

	"coin-dashboard/internal/storage/postgres"
)

// pgLockID serializes concurrent migration runs across server instances.
const pgLockID int64 = 0x636f696e

const pgCreateVersions = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies every embedded Postgres migration that is not
// yet recorded in schema_migrations. Each migration and its version row commit
// together. Returns the number of migrations applied.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) (int, error) {
	migs, err := Load(Postgres)
	if err != nil {
		return 0, err
	}
	if _, err := pool.Exec(ctx, pgCreateVersions); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range migs {
		ok, err := applyPostgres(ctx, pool, m)
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, m Migration) (applied bool, err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", pgLockID); err != nil {
		return false, err
	}

	var done bool
	if err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version).Scan(&done); err != nil {
		return false, err
	}
	if done {
		return false, tx.Commit(ctx)
	}

	if strings.TrimSpace(m.SQL) != "" {
		// No arguments: pgx sends the file over the simple protocol, which
		// accepts several statements.
		if _, err = tx.Exec(ctx, m.SQL); err != nil {
			return false, err
		}
	}
	if _, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
