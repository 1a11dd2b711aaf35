package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"windsentry/internal/config"
	"windsentry/internal/ingest"
	"windsentry/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the dataset queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rendered := renderTable(
					[]string{"ID", "Dataset", "Turbine", "Status", "Progress", "Created"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), rendered)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Queue a telemetry dump by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				path := strings.TrimSpace(args[0])
				abs, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolve path %q: %w", path, err)
				}
				if !ingest.IsTelemetryDump(abs) {
					return fmt.Errorf("%s is not a telemetry dump (.csv or .csv.gz)", abs)
				}
				if existing, err := store.FindBySourcePath(cmd.Context(), abs); err != nil {
					return err
				} else if existing != nil {
					return fmt.Errorf("%s is already queued as dataset #%d", abs, existing.ID)
				}
				item, err := store.NewDataset(cmd.Context(), abs, ingest.InferTurbineID(abs))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued dataset #%d (%s, turbine %s)\n", item.ID, item.DatasetLabel, item.TurbineID)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show a queued dataset in detail",
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
				printItemDetail(cmd, item)
				return nil
			})
		},
	}
}

func printItemDetail(cmd *cobra.Command, item *queue.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset #%d: %s\n", item.ID, item.DatasetLabel)
	fmt.Fprintf(out, "  Source:        %s\n", item.SourcePath)
	fmt.Fprintf(out, "  Turbine:       %s\n", item.TurbineID)
	fmt.Fprintf(out, "  Status:        %s\n", formatStatusLabel(string(item.Status)))
	fmt.Fprintf(out, "  Progress:      %s (%.0f%%)\n", item.ProgressStage, item.ProgressPercent)
	if item.ProgressMessage != "" {
		fmt.Fprintf(out, "  Detail:        %s\n", item.ProgressMessage)
	}
	fmt.Fprintf(out, "  Created:       %s\n", formatDisplayTime(item.CreatedAt))
	fmt.Fprintf(out, "  Updated:       %s\n", formatDisplayTime(item.UpdatedAt))
	if item.ShardPrefix != "" {
		fmt.Fprintf(out, "  Shards:        %s\n", item.ShardPrefix)
	}
	if item.TrainingJobName != "" {
		fmt.Fprintf(out, "  Training job:  %s\n", item.TrainingJobName)
	}
	if item.ModelArtifactURI != "" {
		fmt.Fprintf(out, "  Model:         %s\n", item.ModelArtifactURI)
	}
	if item.ThresholdsURI != "" {
		fmt.Fprintf(out, "  Thresholds:    %s\n", item.ThresholdsURI)
	}
	if item.CompiledModelURI != "" {
		fmt.Fprintf(out, "  Compiled:      %s\n", item.CompiledModelURI)
	}
	if item.PackagedBundleURI != "" {
		fmt.Fprintf(out, "  Bundle:        %s\n", item.PackagedBundleURI)
	}
	if item.DeploymentJobID != "" {
		fmt.Fprintf(out, "  Fleet job:     %s\n", item.DeploymentJobID)
	}
	if item.NeedsReview {
		fmt.Fprintf(out, "  Review:        %s\n", item.ReviewReason)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:         %s\n", item.ErrorMessage)
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed datasets",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					updated, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d failed datasets\n", updated)
					return nil
				}

				for _, id := range ids {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil {
						fmt.Fprintf(out, "Dataset %d not found\n", id)
						continue
					}
					if item.Status != queue.StatusFailed {
						fmt.Fprintf(out, "Dataset %d is not in failed state\n", id)
						continue
					}
					updated, err := store.RetryFailed(cmd.Context(), id)
					if err != nil {
						return err
					}
					if updated > 0 {
						fmt.Fprintf(out, "Dataset %d reset for retry\n", id)
					} else {
						fmt.Fprintf(out, "Dataset %d is not in failed state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <itemID>",
		Short: "Remove a dataset from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("dataset #%d not found", ids[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed dataset #%d\n", ids[0])
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return fmt.Errorf("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var err error
				switch {
				case clearCompleted:
					removed, err = store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed datasets\n", removed)
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed datasets\n", removed)
				default:
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed datasets")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed datasets")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Roll in-flight datasets back to their last stable status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d datasets\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)
				return nil
			})
		},
	}
}
