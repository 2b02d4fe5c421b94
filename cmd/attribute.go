package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/attribution-cli/internal/report"
)

var (
	attrOrg     string
	attrStart   string
	attrEnd     string
	attrOutput  string
	attrFixture string
	attrCompact bool
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Build one attribution report and print it as JSON",
	Long: "Runs the full attribution report for one organization and date window. " +
		"With --fixture the signals come from a JSON fixture file instead of the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, end, err := parseWindow(attrStart, attrEnd)
		if err != nil {
			return err
		}

		var env *reportEnv
		if attrFixture != "" {
			env, err = initOfflineReport(attrFixture)
		} else {
			env, err = initReport(ctx, "attribute")
		}
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		if attrOutput != "" {
			f, err := os.Create(attrOutput)
			if err != nil {
				return eris.Wrapf(err, "create output %s", attrOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return writeReport(ctx, env.Service, out, attrOrg, start, end, !attrCompact)
	},
}

// parseWindow parses YYYY-MM-DD bounds and enforces the configured maximum
// window length.
func parseWindow(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := time.Parse(report.DateLayout, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "invalid --start %q", rawStart)
	}
	end, err := time.Parse(report.DateLayout, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "invalid --end %q", rawEnd)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, eris.Errorf("--end %s is before --start %s", rawEnd, rawStart)
	}
	if limit := cfg.Attribution.MaxRangeDays; limit > 0 {
		if days := int(end.Sub(start).Hours()/24) + 1; days > limit {
			return time.Time{}, time.Time{}, eris.Errorf("date range of %d days exceeds attribution.max_range_days (%d)", days, limit)
		}
	}
	return start, end, nil
}

// writeReport runs the report and encodes it to w.
func writeReport(ctx context.Context, runner report.Runner, w io.Writer, orgID string, start, end time.Time, pretty bool) error {
	rep, err := runner.Run(ctx, orgID, start, end)
	if err != nil {
		return eris.Wrap(err, "attribute")
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		return eris.Wrap(err, "encode report")
	}
	return nil
}

func init() {
	attributeCmd.Flags().StringVar(&attrOrg, "org", "", "organization id (required)")
	attributeCmd.Flags().StringVar(&attrStart, "start", "", "window start, YYYY-MM-DD (required)")
	attributeCmd.Flags().StringVar(&attrEnd, "end", "", "window end, YYYY-MM-DD inclusive (required)")
	attributeCmd.Flags().StringVar(&attrOutput, "output", "", "write JSON to this file instead of stdout")
	attributeCmd.Flags().StringVar(&attrFixture, "fixture", "", "read signals from a JSON fixture instead of the database")
	attributeCmd.Flags().BoolVar(&attrCompact, "compact", false, "emit single-line JSON")
	_ = attributeCmd.MarkFlagRequired("org")
	_ = attributeCmd.MarkFlagRequired("start")
	_ = attributeCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(attributeCmd)
}
