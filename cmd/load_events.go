package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/attribution-cli/internal/db"
	"github.com/sells-group/attribution-cli/internal/loader"
	"github.com/sells-group/attribution-cli/internal/resilience"
)

var (
	loadOrg       string
	loadFile      string
	loadFormat    string
	loadBatchSize int
	loadDryRun    bool
	loadAppend    bool
)

var loadEventsCmd = &cobra.Command{
	Use:   "load-events",
	Short: "Bulk-load conversion events from CSV, JSON, JSONL or XLSX",
	Long: "Normalizes raw conversion events and upserts them into conversion_events in batches, " +
		"keyed on (organization_id, event_id). --dry-run only parses and validates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := loader.ParseFormat(loadFormat)
		if err != nil {
			return err
		}

		batchSize := loadBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Loader.BatchSize
		}

		var pool db.Pool
		if !loadDryRun {
			if err := cfg.Validate("load"); err != nil {
				return err
			}
			p, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer p.Close()
			pool = p
		}

		l := loader.New(pool, loader.Options{
			BatchSize: batchSize,
			Retry:     resilience.WithAttempts(cfg.Loader.MaxAttempts),
			DryRun:    loadDryRun,
			Append:    loadAppend,
		})

		stats, err := l.Load(ctx, loadOrg, loadFile, format)
		if err != nil {
			return eris.Wrap(err, "load events")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	loadEventsCmd.Flags().StringVar(&loadOrg, "org", "", "organization id stamped on every event (required)")
	loadEventsCmd.Flags().StringVar(&loadFile, "file", "", "input file (required)")
	loadEventsCmd.Flags().StringVar(&loadFormat, "format", "auto", "input format: auto, csv, json, jsonl, xlsx")
	loadEventsCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "rows per write (default from config)")
	loadEventsCmd.Flags().BoolVar(&loadDryRun, "dry-run", false, "parse and validate without writing")
	loadEventsCmd.Flags().BoolVar(&loadAppend, "append", false, "plain COPY instead of upsert (fresh tables only)")
	_ = loadEventsCmd.MarkFlagRequired("org")
	_ = loadEventsCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadEventsCmd)
}
