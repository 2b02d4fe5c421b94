// Package loader bulk-loads raw conversion events from CSV, JSON, JSONL or
// XLSX files into the conversion_events table.
package loader

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/db"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/resilience"
)

// DefaultTable is the destination table for loaded events.
const DefaultTable = "conversion_events"

// DefaultBatchSize is used when Options.BatchSize is unset.
const DefaultBatchSize = 10000

// maxSkipLogs bounds per-row warnings for a single file.
const maxSkipLogs = 20

// Options configures a Loader.
type Options struct {
	Table     string
	BatchSize int
	Retry     resilience.RetryConfig
	DryRun    bool

	// Append writes with plain COPY instead of upserting. Faster for fresh
	// tables; fails on keys that already exist.
	Append bool

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Stats summarizes one load.
type Stats struct {
	Read       int64 `json:"read"`
	Valid      int64 `json:"valid"`
	Skipped    int64 `json:"skipped"`
	Duplicates int64 `json:"duplicates"`
	Written    int64 `json:"written"`
	Batches    int64 `json:"batches"`
}

// Loader writes normalized events in idempotent batches.
type Loader struct {
	pool db.Pool
	opts Options
}

// New creates a Loader. pool may be nil for dry runs.
func New(pool db.Pool, opts Options) *Loader {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Loader{pool: pool, opts: opts}
}

func (l *Loader) upsertConfig() db.UpsertConfig {
	return db.UpsertConfig{
		Table:        l.opts.Table,
		Columns:      model.ConversionEventColumns,
		ConflictKeys: []string{"organization_id", "event_id"},
		UpdateCols:   updateColumns(),
	}
}

// updateColumns keeps the stored row id stable across reloads.
func updateColumns() []string {
	var cols []string
	for _, c := range model.ConversionEventColumns {
		switch c {
		case "id", "organization_id", "event_id":
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// batch collects events, replacing earlier rows that share an event_id so a
// single upsert never touches the same key twice.
type batch struct {
	events []model.ConversionEvent
	index  map[string]int
}

func newBatch(size int) *batch {
	return &batch{events: make([]model.ConversionEvent, 0, size), index: make(map[string]int, size)}
}

func (b *batch) add(ev model.ConversionEvent) (replaced bool) {
	if i, ok := b.index[ev.EventID]; ok {
		b.events[i] = ev
		return true
	}
	b.index[ev.EventID] = len(b.events)
	b.events = append(b.events, ev)
	return false
}

func (b *batch) rows() [][]any {
	rows := make([][]any, len(b.events))
	for i, ev := range b.events {
		rows[i] = ev.Values()
	}
	return rows
}

// Load reads path in the given format and writes its events for orgID.
// Rows that fail normalization are skipped and counted; read and write
// failures abort the load with the stats gathered so far.
func (l *Loader) Load(ctx context.Context, orgID, path string, format Format) (Stats, error) {
	var stats Stats

	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return stats, eris.New("loader: organization id is required")
	}
	if !l.opts.DryRun && l.pool == nil {
		return stats, eris.New("loader: database pool is required unless dry run")
	}

	format = DetectFormat(path, format)
	log := zap.L().With(
		zap.String("org_id", orgID),
		zap.String("file", path),
		zap.String("format", string(format)),
		zap.Bool("dry_run", l.opts.DryRun),
	)
	log.Info("loader: starting")
	started := time.Now()

	cur := newBatch(l.opts.BatchSize)
	flush := func() error {
		if len(cur.events) == 0 {
			return nil
		}
		n, err := l.write(ctx, cur, int(stats.Batches)+1)
		if err != nil {
			return err
		}
		stats.Written += n
		stats.Batches++
		cur = newBatch(l.opts.BatchSize)
		return nil
	}

	err := readFile(ctx, path, format, func(pos int, rec Record) error {
		stats.Read++
		ev, err := Normalize(rec, orgID, l.opts.Now(), l.opts.NewID)
		if err != nil {
			stats.Skipped++
			if stats.Skipped <= maxSkipLogs {
				log.Warn("loader: skipping record", zap.Int("position", pos), zap.Error(err))
			}
			return nil
		}
		stats.Valid++
		if cur.add(ev) {
			stats.Duplicates++
		}
		if len(cur.events) >= l.opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		log.Error("loader: failed", zap.Any("stats", stats), zap.Error(err))
		return stats, err
	}

	log.Info("loader: complete",
		zap.Int64("read", stats.Read),
		zap.Int64("valid", stats.Valid),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("written", stats.Written),
		zap.Int64("batches", stats.Batches),
		zap.Duration("elapsed", time.Since(started)),
	)
	return stats, nil
}

func (l *Loader) write(ctx context.Context, b *batch, num int) (int64, error) {
	if l.opts.DryRun {
		return 0, nil
	}

	cfg := l.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("write_batch", zap.Int("batch", num))
	}

	rows := b.rows()
	n, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (int64, error) {
		if l.opts.Append {
			return db.CopyFrom(ctx, l.pool, l.opts.Table, model.ConversionEventColumns, rows)
		}
		return db.BulkUpsert(ctx, l.pool, l.upsertConfig(), rows)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "loader: write batch %d", num)
	}
	zap.L().Debug("loader: batch written", zap.Int("batch", num), zap.Int64("rows", n))
	return n, nil
}
