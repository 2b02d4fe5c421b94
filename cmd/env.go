package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/aggregate"
	"github.com/sells-group/attribution-cli/internal/attribution"
	"github.com/sells-group/attribution-cli/internal/db"
	"github.com/sells-group/attribution-cli/internal/report"
	"github.com/sells-group/attribution-cli/internal/source"
)

// reportEnv holds the database pool and report service used by the serve
// and attribute commands.
type reportEnv struct {
	Pool    *pgxpool.Pool // nil in offline mode
	Service *report.Service
}

// Close releases the pool.
func (e *reportEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// openPool connects to the analytics database from config.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Open(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open database")
	}
	return pool, nil
}

// loadPolicy returns the configured policy file, or the default table.
func loadPolicy() (attribution.Policy, error) {
	if cfg.Attribution.PolicyFile == "" {
		return attribution.DefaultPolicy(), nil
	}
	p, err := attribution.LoadPolicy(cfg.Attribution.PolicyFile)
	if err != nil {
		return attribution.Policy{}, err
	}
	zap.L().Info("loaded attribution policy", zap.String("file", cfg.Attribution.PolicyFile))
	return p, nil
}

// newService builds a report service over reader.
func newService(reader source.Reader) (*report.Service, error) {
	policy, err := loadPolicy()
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Attribution.SourceTimeoutSecs) * time.Second
	return report.NewService(aggregate.New(reader, timeout), attribution.NewEngine(policy)), nil
}

// initReport validates config for mode and wires the Postgres-backed report
// service. Callers should defer env.Close().
func initReport(ctx context.Context, mode string) (*reportEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pool, err := openPool(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := source.NewPostgresReader(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	svc, err := newService(reader)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &reportEnv{Pool: pool, Service: svc}, nil
}

// initOfflineReport wires the report service over a fixture file.
func initOfflineReport(fixturePath string) (*reportEnv, error) {
	if err := cfg.Validate("offline"); err != nil {
		return nil, err
	}

	fx, err := source.LoadFixture(fixturePath)
	if err != nil {
		return nil, err
	}
	svc, err := newService(source.NewMemoryReader(fx))
	if err != nil {
		return nil, err
	}
	return &reportEnv{Service: svc}, nil
}
