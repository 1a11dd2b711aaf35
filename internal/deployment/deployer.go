// Package deployment dispatches the packaged model and its anomaly
// thresholds to the turbine fleet.
package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/packaging"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/services/iotfleet"
	"windsentry/internal/stage"
	"windsentry/internal/training"
)

// Deployer creates the fleet job that rolls the new model out to the edge.
type Deployer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   iotfleet.Client
	notifier notifications.Service
}

// NewDeployer builds the stage handler with a real fleet client.
func NewDeployer(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Deployer, error) {
	client, err := iotfleet.New(ctx, cfg.Cloud.Region, logger)
	if err != nil {
		return nil, err
	}
	return NewDeployerWithDependencies(cfg, store, logger, client, notifications.NewService(cfg)), nil
}

// NewDeployerWithDependencies allows injecting custom dependencies (used for tests).
func NewDeployerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client iotfleet.Client, notifier notifications.Service) *Deployer {
	d := &Deployer{
		store:    store,
		cfg:      cfg,
		client:   client,
		notifier: notifier,
	}
	d.SetLogger(logger)
	return d
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (d *Deployer) SetLogger(logger *slog.Logger) {
	d.logger = logging.NewComponentLogger(logger, "deployer")
}

func (d *Deployer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, d.logger)
	item.InitProgress("Deploying", "Dispatching fleet deployment")
	logger.Debug("starting deployment preparation")
	return nil
}

func (d *Deployer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, d.logger)

	if strings.TrimSpace(item.PackagedBundleURI) == "" {
		return services.Wrap(
			services.ErrValidation,
			"deploying",
			"validate inputs",
			"No packaged bundle recorded; rerun the packaging stage",
			nil,
		)
	}
	if strings.TrimSpace(item.ThresholdsURI) == "" {
		return services.Wrap(
			services.ErrValidation,
			"deploying",
			"validate inputs",
			"No anomaly thresholds recorded; rerun the evaluation stage",
			nil,
		)
	}

	version := packaging.ModelVersion(d.cfg, item)
	jobID := training.JobName("deploy", item)
	doc := iotfleet.Deployment{
		Operation:     "deploy-model",
		ModelName:     d.cfg.Packaging.ModelName,
		ModelVersion:  version,
		BundleURI:     item.PackagedBundleURI,
		ThresholdsURI: item.ThresholdsURI,
	}
	if err := d.client.CreateDeployment(ctx, jobID, d.cfg.Deployment.FleetTargetArn, d.cfg.Deployment.TargetSelection, doc); err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"deploying",
			"create fleet job",
			"Failed to dispatch the fleet deployment job; check cloud credentials and the fleet target",
			err,
		)
	}

	item.DeploymentJobID = jobID
	item.SetProgressComplete("Deployed", fmt.Sprintf("Fleet job %s dispatched", jobID))
	logger.Info("deployment dispatched",
		logging.String(logging.FieldEventType, "deployment_dispatched"),
		logging.String("job", jobID),
		logging.String("target", d.cfg.Deployment.FleetTargetArn),
		logging.String("version", version))
	if d.notifier != nil {
		if err := d.notifier.NotifyDeploymentDispatched(ctx, item.DatasetLabel, jobID, version); err != nil {
			logger.Warn("failed to send deployment notification", logging.Error(err))
		}
	}
	return nil
}

func (d *Deployer) HealthCheck(ctx context.Context) stage.Health {
	const name = "deployer"
	if d.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if d.client == nil {
		return stage.Unhealthy(name, "fleet client unavailable")
	}
	if strings.TrimSpace(d.cfg.Deployment.FleetTargetArn) == "" {
		return stage.Unhealthy(name, "fleet target not configured")
	}
	return stage.Healthy(name)
}
