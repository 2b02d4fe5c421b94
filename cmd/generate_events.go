package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/loader"
	"github.com/sells-group/attribution-cli/internal/report"
)

var (
	genOrg    string
	genCount  int
	genStart  string
	genDays   int
	genSeed   uint64
	genOutput string
	genFormat string
)

var generateEventsCmd = &cobra.Command{
	Use:   "generate-events",
	Short: "Write synthetic conversion events for testing load-events",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := loader.ParseFormat(genFormat)
		if err != nil {
			return err
		}
		if genCount <= 0 || genDays <= 0 {
			return eris.New("generate-events: --count and --days must be > 0")
		}

		start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -genDays)
		if genStart != "" {
			start, err = time.Parse(report.DateLayout, genStart)
			if err != nil {
				return eris.Wrapf(err, "invalid --start %q", genStart)
			}
		}
		end := start.AddDate(0, 0, genDays)

		events := loader.NewGenerator(genOrg, genSeed).Events(genCount, start, end)
		if err := loader.WriteEvents(genOutput, format, events); err != nil {
			return err
		}

		zap.L().Info("generated events",
			zap.String("file", genOutput),
			zap.Int("count", len(events)),
			zap.Time("start", start),
			zap.Time("end", end),
		)
		return nil
	},
}

func init() {
	generateEventsCmd.Flags().StringVar(&genOrg, "org", "org_sample", "organization id")
	generateEventsCmd.Flags().IntVar(&genCount, "count", 1000, "number of events")
	generateEventsCmd.Flags().StringVar(&genStart, "start", "", "first day, YYYY-MM-DD (default: --days before today)")
	generateEventsCmd.Flags().IntVar(&genDays, "days", 7, "days covered")
	generateEventsCmd.Flags().Uint64Var(&genSeed, "seed", 1, "random seed")
	generateEventsCmd.Flags().StringVar(&genOutput, "output", "sample_events.csv", "output file")
	generateEventsCmd.Flags().StringVar(&genFormat, "format", "auto", "output format: auto, csv, json, jsonl, xlsx")
	rootCmd.AddCommand(generateEventsCmd)
}
