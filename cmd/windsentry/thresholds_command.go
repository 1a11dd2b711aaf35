package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"windsentry/internal/config"
	"windsentry/internal/queue"
)

func newThresholdsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds <itemID>",
		Short: "Show per-channel anomaly thresholds for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("dataset #%d not found", ids[0])
				}
				if item.ThresholdsJSON == "" {
					return fmt.Errorf("dataset #%d has no thresholds yet (status: %s)", item.ID, formatStatusLabel(string(item.Status)))
				}

				var values map[string]float64
				if err := json.Unmarshal([]byte(item.ThresholdsJSON), &values); err != nil {
					return fmt.Errorf("decode thresholds for dataset #%d: %w", item.ID, err)
				}

				channels := make([]string, 0, len(values))
				for name := range values {
					channels = append(channels, name)
				}
				sort.Strings(channels)

				rows := make([][]string, 0, len(channels))
				for _, name := range channels {
					rows = append(rows, []string{name, fmt.Sprintf("%.6f", values[name])})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Dataset #%d: %s\n", item.ID, item.DatasetLabel)
				if item.ThresholdsURI != "" {
					fmt.Fprintf(out, "Stored at: %s\n", item.ThresholdsURI)
				}
				fmt.Fprintln(out, renderTable([]string{"Channel", "Threshold"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
