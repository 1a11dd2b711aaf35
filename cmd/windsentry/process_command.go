package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"windsentry/internal/compilation"
	"windsentry/internal/config"
	"windsentry/internal/deployment"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/packaging"
	"windsentry/internal/preprocess"
	"windsentry/internal/queue"
	"windsentry/internal/stage"
	"windsentry/internal/stageexec"
	"windsentry/internal/thresholds"
	"windsentry/internal/training"
	"windsentry/internal/uploading"
)

type stagePlan struct {
	name       string
	processing queue.Status
	done       queue.Status
	build      func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error)
}

// stagePlans maps each stable status to the stage that consumes it.
var stagePlans = map[queue.Status]stagePlan{
	queue.StatusPending: {
		name:       "preprocessor",
		processing: queue.StatusPreprocessing,
		done:       queue.StatusPreprocessed,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return preprocess.NewPreprocessor(cfg, store, logger), nil
		},
	},
	queue.StatusPreprocessed: {
		name:       "uploader",
		processing: queue.StatusUploading,
		done:       queue.StatusUploaded,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return uploading.NewUploader(cfg, store, logger)
		},
	},
	queue.StatusUploaded: {
		name:       "trainer",
		processing: queue.StatusTraining,
		done:       queue.StatusTrained,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return training.NewTrainer(ctx, cfg, store, logger)
		},
	},
	queue.StatusTrained: {
		name:       "evaluator",
		processing: queue.StatusEvaluating,
		done:       queue.StatusEvaluated,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return thresholds.NewEvaluator(ctx, cfg, store, logger)
		},
	},
	queue.StatusEvaluated: {
		name:       "compiler",
		processing: queue.StatusCompiling,
		done:       queue.StatusCompiled,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return compilation.NewCompiler(ctx, cfg, store, logger)
		},
	},
	queue.StatusCompiled: {
		name:       "packager",
		processing: queue.StatusPackaging,
		done:       queue.StatusPackaged,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return packaging.NewPackager(ctx, cfg, store, logger)
		},
	},
	queue.StatusPackaged: {
		name:       "deployer",
		processing: queue.StatusDeploying,
		done:       queue.StatusCompleted,
		build: func(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (stage.Handler, error) {
			return deployment.NewDeployer(ctx, cfg, store, logger)
		},
	},
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <itemID>",
		Short: "Run the next pipeline stage for a dataset without the daemon",
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

				plan, ok := stagePlans[item.Status]
				if !ok {
					return fmt.Errorf("dataset #%d has no runnable stage in status %s", item.ID, formatStatusLabel(string(item.Status)))
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				handler, err := plan.build(cmd.Context(), cfg, store, logger)
				if err != nil {
					return fmt.Errorf("build %s stage: %w", plan.name, err)
				}

				if err := stageexec.Run(cmd.Context(), stageexec.Options{
					Logger:     logger,
					Store:      store,
					Notifier:   notifications.NewService(cfg),
					Handler:    handler,
					StageName:  plan.name,
					Processing: plan.processing,
					Done:       plan.done,
					Item:       item,
				}); err != nil {
					if item.NeedsReview {
						return fmt.Errorf("%s requires review: %s", plan.name, strings.TrimSpace(item.ReviewReason))
					}
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Dataset #%d advanced to %s\n", item.ID, formatStatusLabel(string(item.Status)))
				return nil
			})
		},
	}
}
