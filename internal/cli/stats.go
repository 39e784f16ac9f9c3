package cli

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print job, queue and server statistics as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger := loadConfig()
		st, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		mon := st.Monitoring()
		stats, err := mon.Statistics(ctx)
		if err != nil {
			return err
		}
		queues, err := mon.Queues(ctx)
		if err != nil {
			return err
		}
		servers, err := mon.Servers(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"statistics": stats,
			"queues":     queues,
			"servers":    servers,
		})
	},
}
