// Package packaging bundles a compiled model into a deployable edge package.
package packaging

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/objectstore"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/services/mlops"
	"windsentry/internal/stage"
	"windsentry/internal/training"
)

// Packager launches an edge packaging job and waits for its terminal state.
type Packager struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	client  mlops.Client
	objects objectstore.Client
}

// NewPackager builds the stage handler with real cloud clients.
func NewPackager(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Packager, error) {
	client, err := mlops.NewSageMaker(ctx, cfg.Cloud.Region, logger)
	if err != nil {
		return nil, err
	}
	objects, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewPackagerWithDependencies(cfg, store, logger, client, objects), nil
}

// NewPackagerWithDependencies allows injecting custom dependencies (used for tests).
func NewPackagerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client mlops.Client, objects objectstore.Client) *Packager {
	p := &Packager{
		store:   store,
		cfg:     cfg,
		client:  client,
		objects: objects,
	}
	p.SetLogger(logger)
	return p
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (p *Packager) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "packager")
}

func (p *Packager) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.InitProgress("Packaging", "Launching edge packaging")
	logger.Debug("starting packaging preparation")
	return nil
}

func (p *Packager) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)

	if strings.TrimSpace(item.CompilationJobName) == "" || strings.TrimSpace(item.CompiledModelURI) == "" {
		return services.Wrap(
			services.ErrValidation,
			"packaging",
			"validate inputs",
			"No compiled model recorded; rerun the compilation stage",
			nil,
		)
	}

	jobName := training.JobName("package", item)
	outputKey := path.Join(p.cfg.Storage.Prefix, p.cfg.Packaging.OutputPrefix, jobName)
	spec := mlops.PackagingSpec{
		JobName:            jobName,
		CompilationJobName: item.CompilationJobName,
		ModelName:          p.cfg.Packaging.ModelName,
		ModelVersion:       ModelVersion(p.cfg, item),
		RoleArn:            p.cfg.Cloud.RoleArn,
		OutputURI:          p.objects.URI(outputKey),
	}
	if err := p.client.StartPackagingJob(ctx, spec); err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"packaging",
			"start packaging job",
			"Failed to launch the edge packaging job; check cloud credentials and role",
			err,
		)
	}
	item.PackagingJobName = jobName
	item.SetProgress("Packaging", fmt.Sprintf("Packaging job %s running", jobName), 25)
	logger.Info("packaging job launched",
		logging.String(logging.FieldJobName, jobName),
		logging.String("model", spec.ModelName),
		logging.String("version", spec.ModelVersion))

	status, err := mlops.PollUntilDone(ctx, jobName, p.pollInterval(), p.client.DescribePackagingJob)
	if err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"packaging",
			"monitor packaging job",
			"Lost track of the packaging job; it may still be running in the cloud",
			err,
		)
	}
	if !status.State.Succeeded() {
		return services.Wrap(
			services.ErrExternalService,
			"packaging",
			"await packaging job",
			fmt.Sprintf("Packaging job %s ended %s: %s", jobName, status.State, status.FailureReason),
			nil,
		)
	}
	if strings.TrimSpace(status.ArtifactURI) == "" {
		return services.Wrap(
			services.ErrExternalService,
			"packaging",
			"record packaged bundle",
			fmt.Sprintf("Packaging job %s completed without a bundle", jobName),
			nil,
		)
	}

	item.PackagedBundleURI = status.ArtifactURI
	item.SetProgressComplete("Packaged", fmt.Sprintf("Bundle at %s", status.ArtifactURI))
	logger.Info("packaging complete",
		logging.String(logging.FieldEventType, "packaging_complete"),
		logging.String(logging.FieldJobName, jobName),
		logging.String("bundle", status.ArtifactURI))
	return nil
}

func (p *Packager) HealthCheck(ctx context.Context) stage.Health {
	const name = "packager"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.client == nil {
		return stage.Unhealthy(name, "packaging client unavailable")
	}
	if strings.TrimSpace(p.cfg.Packaging.ModelName) == "" {
		return stage.Unhealthy(name, "model name not configured")
	}
	return stage.Healthy(name)
}

func (p *Packager) pollInterval() time.Duration {
	return time.Duration(p.cfg.Cloud.PollIntervalSeconds) * time.Second
}

// ModelVersion derives the packaged model version. A configured version wins;
// otherwise the queue item id keeps versions monotonically increasing.
func ModelVersion(cfg *config.Config, item *queue.Item) string {
	if v := strings.TrimSpace(cfg.Packaging.ModelVersion); v != "" {
		return v
	}
	return fmt.Sprintf("1.%d", item.ID)
}
