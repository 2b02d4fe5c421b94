// Package migrate creates the signal and event tables used by the
// attribution readers and the bulk event loader.
package migrate

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const advisoryLockKey = 4242001

// Run applies all pending SQL migrations in lexicographic order and returns
// the filenames it applied.
func Run(ctx context.Context, pool db.Pool) ([]string, error) {
	log := zap.L().With(zap.String("component", "migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
		return nil, eris.Wrap(err, "migrate: acquire advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockKey); err != nil {
			log.Warn("migrate: failed to release advisory lock", zap.Error(err))
		}
	}()

	if err := ensureMigrationTable(ctx, pool); err != nil {
		return nil, err
	}

	names, err := Files()
	if err != nil {
		return nil, err
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, name := range names {
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return ran, eris.Wrapf(err, "migrate: read %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return ran, eris.Wrapf(err, "migrate: apply %s", name)
		}
		if _, err := pool.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return ran, eris.Wrapf(err, "migrate: record %s", name)
		}
		ran = append(ran, name)
	}

	log.Info("migrations complete", zap.Int("applied", len(ran)), zap.Int("total", len(names)))
	return ran, nil
}

// Files lists the embedded migration filenames in apply order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "migrate: read migration dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ensureMigrationTable(ctx context.Context, pool db.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "migrate: ensure migration table")
	}
	return nil
}

func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "migrate: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "migrate: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
