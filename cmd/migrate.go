package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations for the signal and event tables",
	Long:  "Applies all pending SQL migrations in lexicographic order. Intended for development and test databases.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrate.Run(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("migrations complete", zap.Strings("applied", applied), zap.Int("count", len(applied)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
