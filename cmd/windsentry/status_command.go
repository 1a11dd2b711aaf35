package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"windsentry/internal/config"
	"windsentry/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "Config:   %s\n", ctx.configPath)
				fmt.Fprintf(out, "Queue DB: %s\n", cfg.QueueDatabasePath())
				fmt.Fprintf(out, "Incoming: %s\n", cfg.Paths.IncomingDir)
				fmt.Fprintln(out)

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rendered := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, rendered)

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%d total, %d in flight, %d failed, %d awaiting review\n",
					health.Total, health.Processing, health.Failed, health.Review)
				return nil
			})
		},
	}
}
