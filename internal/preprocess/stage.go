package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/stage"
	"windsentry/internal/telemetry"
	"windsentry/internal/window"
)

// StatsFileName is the per-dataset normalization statistics file written next
// to the shards.
const StatsFileName = "stats.json"

// Preprocessor converts a raw telemetry dump into normalized tensor shards.
type Preprocessor struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// NewPreprocessor builds the stage handler with default dependencies.
func NewPreprocessor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Preprocessor {
	return NewPreprocessorWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewPreprocessorWithDependencies allows injecting custom dependencies (used for tests).
func NewPreprocessorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Preprocessor {
	p := &Preprocessor{
		store:    store,
		cfg:      cfg,
		notifier: notifier,
	}
	p.SetLogger(logger)
	return p
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (p *Preprocessor) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "preprocessor")
}

func (p *Preprocessor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.InitProgress("Preprocessing", "Loading telemetry")
	item.ShardManifestJSON = ""
	item.StatsJSON = ""
	logger.Debug("starting preprocessing preparation", logging.String("source", item.SourcePath))
	return nil
}

func (p *Preprocessor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)

	reader, err := telemetry.Open(item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"preprocessing",
			"open telemetry dump",
			"Telemetry dump missing or unreadable; verify the source file",
			err,
		)
	}
	defer reader.Close()

	records, err := reader.ReadAll()
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"preprocessing",
			"read telemetry dump",
			"Telemetry dump is malformed; check the CSV header and rows",
			err,
		)
	}
	if len(records) < window.Size {
		return services.Wrap(
			services.ErrValidation,
			"preprocessing",
			"validate sample count",
			fmt.Sprintf("Dataset has %d samples but at least %d are needed for one window", len(records), window.Size),
			nil,
		)
	}
	logger.Info("telemetry loaded", logging.Int("samples", len(records)))
	item.SetProgress("Preprocessing", "Denoising channels", 25)

	channels := ExtractChannels(records)
	prepared, stats := PrepareChannels(channels, p.cfg.Preprocess.WaveletLevels)
	item.SetProgress("Preprocessing", "Encoding windows", 50)

	tensor, err := window.Build(prepared, p.cfg.Preprocess.WindowStride)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"preprocessing",
			"encode windows",
			"Failed to encode telemetry into training windows",
			err,
		)
	}
	logger.Info("windows encoded",
		logging.Int("windows", tensor.Windows()),
		logging.Int("stride", p.cfg.Preprocess.WindowStride))
	item.SetProgress("Preprocessing", "Writing shards", 75)

	shardDir := p.shardDir(item)
	if err := resetDir(shardDir); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"preprocessing",
			"prepare shard dir",
			"Failed to prepare the shard directory; set staging_dir to a writable path",
			err,
		)
	}

	manifest, err := window.WriteShards(shardDir, item.DatasetLabel, tensor, p.cfg.Preprocess.MaxShardBytes)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"preprocessing",
			"write shards",
			"Failed to write tensor shards; check free space under staging_dir",
			err,
		)
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"preprocessing",
			"encode shard manifest",
			"Failed to encode the shard manifest",
			err,
		)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"preprocessing",
			"encode channel statistics",
			"Failed to encode channel statistics",
			err,
		)
	}
	if err := os.WriteFile(filepath.Join(shardDir, StatsFileName), statsJSON, 0o644); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"preprocessing",
			"write channel statistics",
			"Failed to write channel statistics next to the shards",
			err,
		)
	}

	item.ShardManifestJSON = string(manifestJSON)
	item.StatsJSON = string(statsJSON)
	item.SetProgressComplete("Preprocessed", fmt.Sprintf("%d windows in %d shards", manifest.Windows, len(manifest.Shards)))

	logger.Info("preprocessing complete",
		logging.String(logging.FieldEventType, "preprocessing_complete"),
		logging.Int("windows", manifest.Windows),
		logging.Int("shards", len(manifest.Shards)))
	if p.notifier != nil {
		if err := p.notifier.NotifyPreprocessingCompleted(ctx, item.DatasetLabel, manifest.Windows, len(manifest.Shards)); err != nil {
			logger.Warn("failed to send preprocessing notification", logging.Error(err))
		}
	}
	return nil
}

func (p *Preprocessor) HealthCheck(ctx context.Context) stage.Health {
	const name = "preprocessor"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(p.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if p.cfg.Preprocess.WindowStride <= 0 {
		return stage.Unhealthy(name, "window stride must be positive")
	}
	if p.cfg.Preprocess.MaxShardBytes <= 0 {
		return stage.Unhealthy(name, "shard byte budget must be positive")
	}
	return stage.Healthy(name)
}

func (p *Preprocessor) shardDir(item *queue.Item) string {
	root := item.StagingRoot(p.cfg.Paths.StagingDir)
	if root == "" {
		root = filepath.Join(strings.TrimSpace(p.cfg.Paths.StagingDir), fmt.Sprintf("dataset-%d", item.ID))
	}
	return filepath.Join(root, "shards")
}

// ShardDir exposes the per-item shard directory to the upload stage.
func ShardDir(cfg *config.Config, item *queue.Item) string {
	root := item.StagingRoot(cfg.Paths.StagingDir)
	if root == "" {
		return ""
	}
	return filepath.Join(root, "shards")
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
