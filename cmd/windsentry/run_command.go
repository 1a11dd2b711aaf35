package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"windsentry/internal/compilation"
	"windsentry/internal/config"
	"windsentry/internal/daemon"
	"windsentry/internal/deployment"
	"windsentry/internal/ingest"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/packaging"
	"windsentry/internal/preflight"
	"windsentry/internal/preprocess"
	"windsentry/internal/queue"
	"windsentry/internal/thresholds"
	"windsentry/internal/training"
	"windsentry/internal/uploading"
	"windsentry/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline daemon",
		Long:  "Run the pipeline daemon: watch the incoming directory for telemetry dumps and drive each queued dataset through preprocessing, training, evaluation, compilation, packaging, and fleet deployment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "windsentry.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	for _, check := range preflight.RunAll(signalCtx, cfg) {
		if check.Passed {
			logger.Debug("preflight check passed", logging.String("check", check.Name), logging.String("detail", check.Detail))
			continue
		}
		logger.Warn("preflight check failed", logging.String("check", check.Name), logging.String("detail", check.Detail))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	if err := registerStages(signalCtx, manager, cfg, store, logger); err != nil {
		return fmt.Errorf("configure stages: %w", err)
	}

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, manager, watcher, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("windsentry daemon shutting down")
	return nil
}

func registerStages(ctx context.Context, mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) error {
	uploader, err := uploading.NewUploader(cfg, store, logger)
	if err != nil {
		return err
	}
	trainer, err := training.NewTrainer(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	evaluator, err := thresholds.NewEvaluator(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	compiler, err := compilation.NewCompiler(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	packager, err := packaging.NewPackager(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	deployer, err := deployment.NewDeployer(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	mgr.ConfigureStages(workflow.StageSet{
		Preprocessor: preprocess.NewPreprocessor(cfg, store, logger),
		Uploader:     uploader,
		Trainer:      trainer,
		Evaluator:    evaluator,
		Compiler:     compiler,
		Packager:     packager,
		Deployer:     deployer,
	})
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
