package cli

import (
	"github.com/spf13/cobra"

	"github.com/xraph/jobstore/maintenance"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiration sweep and one counter aggregation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger := loadConfig()
		st, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		opts := []maintenance.Option{
			maintenance.WithLogger(logger),
			maintenance.WithMetrics(st.Metrics()),
		}
		removed, err := maintenance.NewExpirationManager(st.Store(), opts...).RunOnce(ctx)
		if err != nil {
			return err
		}
		aggregated, err := maintenance.NewCountersAggregator(st.Store(), opts...).RunOnce(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"expired":    removed,
			"aggregated": aggregated,
		})
	},
}
