// Package compilation compiles a trained model for the edge hardware running
// on the turbines.
package compilation

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

// Compiler launches an edge compilation job and waits for its terminal state.
type Compiler struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	client  mlops.Client
	objects objectstore.Client
}

// NewCompiler builds the stage handler with real cloud clients.
func NewCompiler(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Compiler, error) {
	client, err := mlops.NewSageMaker(ctx, cfg.Cloud.Region, logger)
	if err != nil {
		return nil, err
	}
	objects, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewCompilerWithDependencies(cfg, store, logger, client, objects), nil
}

// NewCompilerWithDependencies allows injecting custom dependencies (used for tests).
func NewCompilerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client mlops.Client, objects objectstore.Client) *Compiler {
	c := &Compiler{
		store:   store,
		cfg:     cfg,
		client:  client,
		objects: objects,
	}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (c *Compiler) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "compiler")
}

func (c *Compiler) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	item.InitProgress("Compiling", "Launching edge compilation")
	logger.Debug("starting compilation preparation")
	return nil
}

func (c *Compiler) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)

	if strings.TrimSpace(item.ModelArtifactURI) == "" {
		return services.Wrap(
			services.ErrValidation,
			"compiling",
			"validate inputs",
			"No trained model artifact recorded; rerun the training stage",
			nil,
		)
	}

	jobName := training.JobName("compile", item)
	outputKey := path.Join(c.cfg.Storage.Prefix, c.cfg.Compilation.OutputPrefix, jobName)
	spec := mlops.CompilationSpec{
		JobName:           jobName,
		RoleArn:           c.cfg.Cloud.RoleArn,
		ModelArtifactURI:  item.ModelArtifactURI,
		OutputURI:         c.objects.URI(outputKey),
		Framework:         c.cfg.Compilation.Framework,
		DataInputConfig:   c.cfg.Compilation.DataInputConfig,
		TargetOS:          c.cfg.Compilation.TargetOS,
		TargetArch:        c.cfg.Compilation.TargetArch,
		TargetAccel:       c.cfg.Compilation.TargetAccel,
		CompilerOptions:   c.cfg.Compilation.CompilerOptions,
		MaxRuntimeSeconds: c.cfg.Training.MaxRuntimeSeconds,
	}
	if err := c.client.StartCompilationJob(ctx, spec); err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"compiling",
			"start compilation job",
			"Failed to launch the compilation job; check cloud credentials and role",
			err,
		)
	}
	item.CompilationJobName = jobName
	item.SetProgress("Compiling", fmt.Sprintf("Compilation job %s running", jobName), 25)
	logger.Info("compilation job launched",
		logging.String(logging.FieldJobName, jobName),
		logging.String("target", c.cfg.Compilation.TargetArch))

	status, err := mlops.PollUntilDone(ctx, jobName, c.pollInterval(), c.client.DescribeCompilationJob)
	if err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"compiling",
			"monitor compilation job",
			"Lost track of the compilation job; it may still be running in the cloud",
			err,
		)
	}
	if !status.State.Succeeded() {
		return services.Wrap(
			services.ErrExternalService,
			"compiling",
			"await compilation job",
			fmt.Sprintf("Compilation job %s ended %s: %s", jobName, status.State, status.FailureReason),
			nil,
		)
	}
	if strings.TrimSpace(status.ArtifactURI) == "" {
		return services.Wrap(
			services.ErrExternalService,
			"compiling",
			"record compiled model",
			fmt.Sprintf("Compilation job %s completed without an artifact", jobName),
			nil,
		)
	}

	item.CompiledModelURI = status.ArtifactURI
	item.SetProgressComplete("Compiled", fmt.Sprintf("Compiled model at %s", status.ArtifactURI))
	logger.Info("compilation complete",
		logging.String(logging.FieldEventType, "compilation_complete"),
		logging.String(logging.FieldJobName, jobName),
		logging.String("artifact", status.ArtifactURI))
	return nil
}

func (c *Compiler) HealthCheck(ctx context.Context) stage.Health {
	const name = "compiler"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if c.client == nil {
		return stage.Unhealthy(name, "compilation client unavailable")
	}
	if strings.TrimSpace(c.cfg.Compilation.Framework) == "" {
		return stage.Unhealthy(name, "compilation framework not configured")
	}
	if strings.TrimSpace(c.cfg.Compilation.TargetArch) == "" {
		return stage.Unhealthy(name, "compilation target not configured")
	}
	return stage.Healthy(name)
}

func (c *Compiler) pollInterval() time.Duration {
	return time.Duration(c.cfg.Cloud.PollIntervalSeconds) * time.Second
}
