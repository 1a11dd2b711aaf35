// Package uploading pushes preprocessed tensor shards and their channel
// statistics to object storage so the managed training jobs can reach them.
package uploading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/objectstore"
	"windsentry/internal/preprocess"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/stage"
	"windsentry/internal/window"
)

// Uploader copies dataset shards from staging into object storage.
type Uploader struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client objectstore.Client
}

// NewUploader builds the stage handler with a real object storage client.
func NewUploader(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Uploader, error) {
	client, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewUploaderWithDependencies(cfg, store, logger, client), nil
}

// NewUploaderWithDependencies allows injecting custom dependencies (used for tests).
func NewUploaderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client objectstore.Client) *Uploader {
	u := &Uploader{
		store:  store,
		cfg:    cfg,
		client: client,
	}
	u.SetLogger(logger)
	return u
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (u *Uploader) SetLogger(logger *slog.Logger) {
	u.logger = logging.NewComponentLogger(logger, "uploader")
}

func (u *Uploader) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	item.InitProgress("Uploading", "Uploading dataset shards")
	logger.Debug("starting upload preparation")
	return nil
}

func (u *Uploader) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)

	if strings.TrimSpace(item.ShardManifestJSON) == "" {
		return services.Wrap(
			services.ErrValidation,
			"uploading",
			"validate inputs",
			"No shard manifest recorded; rerun preprocessing",
			nil,
		)
	}
	var manifest window.Manifest
	if err := json.Unmarshal([]byte(item.ShardManifestJSON), &manifest); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"uploading",
			"parse shard manifest",
			"Shard manifest is corrupt; rerun preprocessing",
			err,
		)
	}

	shardDir := preprocess.ShardDir(u.cfg, item)
	prefix := DatasetPrefix(u.cfg, item)

	total := len(manifest.Shards) + 1
	for idx, shard := range manifest.Shards {
		key := path.Join(prefix, shard.Name)
		if err := u.client.Upload(ctx, key, filepath.Join(shardDir, shard.Name)); err != nil {
			return services.Wrap(
				services.ErrTransient,
				"uploading",
				"upload shard",
				fmt.Sprintf("Failed to upload shard %s; check object storage connectivity", shard.Name),
				err,
			)
		}
		percent := float64(idx+1) / float64(total) * 100
		item.SetProgress("Uploading", fmt.Sprintf("Uploaded %d/%d shards", idx+1, len(manifest.Shards)), percent)
	}

	statsKey := path.Join(prefix, preprocess.StatsFileName)
	if err := u.client.Upload(ctx, statsKey, filepath.Join(shardDir, preprocess.StatsFileName)); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"uploading",
			"upload channel statistics",
			"Failed to upload channel statistics; check object storage connectivity",
			err,
		)
	}

	item.ShardPrefix = prefix
	item.SetProgressComplete("Uploaded", fmt.Sprintf("%d shards at %s", len(manifest.Shards), u.client.URI(prefix)))
	logger.Info("dataset uploaded",
		logging.String(logging.FieldEventType, "dataset_uploaded"),
		logging.Int("shards", len(manifest.Shards)),
		logging.String("prefix", prefix))
	return nil
}

func (u *Uploader) HealthCheck(ctx context.Context) stage.Health {
	const name = "uploader"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if u.client == nil {
		return stage.Unhealthy(name, "object storage client unavailable")
	}
	if strings.TrimSpace(u.cfg.Storage.Bucket) == "" {
		return stage.Unhealthy(name, "storage bucket not configured")
	}
	return stage.Healthy(name)
}

// DatasetPrefix returns the object key prefix holding one dataset's shards.
func DatasetPrefix(cfg *config.Config, item *queue.Item) string {
	return path.Join(cfg.Storage.Prefix, "datasets", fmt.Sprintf("%s-%d", item.DatasetLabel, item.ID))
}
