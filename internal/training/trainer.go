// Package training drives the managed model training job for an uploaded
// dataset and records the resulting model artifact.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/objectstore"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/services/mlops"
	"windsentry/internal/stage"
)

// Trainer launches a training job and waits for its terminal state.
type Trainer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   mlops.Client
	objects  objectstore.Client
	notifier notifications.Service
}

// NewTrainer builds the stage handler with real cloud clients.
func NewTrainer(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Trainer, error) {
	client, err := mlops.NewSageMaker(ctx, cfg.Cloud.Region, logger)
	if err != nil {
		return nil, err
	}
	objects, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewTrainerWithDependencies(cfg, store, logger, client, objects, notifications.NewService(cfg)), nil
}

// NewTrainerWithDependencies allows injecting custom dependencies (used for tests).
func NewTrainerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client mlops.Client, objects objectstore.Client, notifier notifications.Service) *Trainer {
	tr := &Trainer{
		store:    store,
		cfg:      cfg,
		client:   client,
		objects:  objects,
		notifier: notifier,
	}
	tr.SetLogger(logger)
	return tr
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (t *Trainer) SetLogger(logger *slog.Logger) {
	t.logger = logging.NewComponentLogger(logger, "trainer")
}

func (t *Trainer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, t.logger)
	item.InitProgress("Training", "Launching training job")
	logger.Debug("starting training preparation")
	return nil
}

func (t *Trainer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, t.logger)

	if strings.TrimSpace(item.ShardPrefix) == "" {
		return services.Wrap(
			services.ErrValidation,
			"training",
			"validate inputs",
			"No uploaded shard prefix recorded; rerun the upload stage",
			nil,
		)
	}

	jobName := JobName("train", item)
	outputKey := path.Join(t.cfg.Storage.Prefix, t.cfg.Training.OutputPrefix, jobName)
	spec := mlops.TrainingJobSpec{
		JobName:           jobName,
		Image:             t.cfg.Training.Image,
		RoleArn:           t.cfg.Cloud.RoleArn,
		InputURI:          t.objects.URI(item.ShardPrefix),
		OutputURI:         t.objects.URI(outputKey),
		InstanceType:      t.cfg.Training.InstanceType,
		InstanceCount:     t.cfg.Training.InstanceCount,
		VolumeSizeGB:      t.cfg.Training.VolumeSizeGB,
		MaxRuntimeSeconds: t.cfg.Training.MaxRuntimeSeconds,
		Hyperparameters:   t.cfg.Training.Hyperparameters,
	}
	if err := t.client.StartTrainingJob(ctx, spec); err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"training",
			"start training job",
			"Failed to launch the training job; check cloud credentials and role",
			err,
		)
	}
	item.TrainingJobName = jobName
	item.SetProgress("Training", fmt.Sprintf("Training job %s running", jobName), 25)
	logger.Info("training job launched",
		logging.String(logging.FieldJobName, jobName),
		logging.String("input", spec.InputURI))
	if t.notifier != nil {
		if err := t.notifier.NotifyTrainingStarted(ctx, item.DatasetLabel, jobName); err != nil {
			logger.Warn("failed to send training notification", logging.Error(err))
		}
	}

	status, err := mlops.PollUntilDone(ctx, jobName, t.pollInterval(), t.client.DescribeTrainingJob)
	if err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"training",
			"monitor training job",
			"Lost track of the training job; it may still be running in the cloud",
			err,
		)
	}
	if !status.State.Succeeded() {
		return services.Wrap(
			services.ErrExternalService,
			"training",
			"await training job",
			fmt.Sprintf("Training job %s ended %s: %s", jobName, status.State, status.FailureReason),
			nil,
		)
	}
	if strings.TrimSpace(status.ArtifactURI) == "" {
		return services.Wrap(
			services.ErrExternalService,
			"training",
			"record model artifact",
			fmt.Sprintf("Training job %s completed without a model artifact", jobName),
			nil,
		)
	}

	item.ModelArtifactURI = status.ArtifactURI
	item.SetProgressComplete("Trained", fmt.Sprintf("Model at %s", status.ArtifactURI))
	logger.Info("training complete",
		logging.String(logging.FieldEventType, "training_complete"),
		logging.String(logging.FieldJobName, jobName),
		logging.String("artifact", status.ArtifactURI))
	if t.notifier != nil {
		if err := t.notifier.NotifyTrainingCompleted(ctx, item.DatasetLabel, jobName); err != nil {
			logger.Warn("failed to send training notification", logging.Error(err))
		}
	}
	return nil
}

func (t *Trainer) HealthCheck(ctx context.Context) stage.Health {
	const name = "trainer"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if t.client == nil {
		return stage.Unhealthy(name, "training client unavailable")
	}
	if strings.TrimSpace(t.cfg.Training.Image) == "" {
		return stage.Unhealthy(name, "training image not configured")
	}
	if strings.TrimSpace(t.cfg.Cloud.RoleArn) == "" {
		return stage.Unhealthy(name, "execution role not configured")
	}
	return stage.Healthy(name)
}

func (t *Trainer) pollInterval() time.Duration {
	return time.Duration(t.cfg.Cloud.PollIntervalSeconds) * time.Second
}

// JobName mints a unique cloud job name for the item. Managed services
// require names to be unique per account, so each attempt gets a fresh
// suffix.
func JobName(kind string, item *queue.Item) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("windsentry-%s-%d-%s", kind, item.ID, suffix)
}
