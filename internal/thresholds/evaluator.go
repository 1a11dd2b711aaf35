// Package thresholds runs the batch evaluation of a trained model and turns
// its reconstruction errors into per-channel anomaly thresholds. Edge devices
// compare live reconstruction error against these values to flag anomalies
// without a cloud round trip.
package thresholds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/objectstore"
	"windsentry/internal/preprocess"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/services/mlops"
	"windsentry/internal/stage"
	"windsentry/internal/training"
	"windsentry/internal/window"
)

// TransformOutputSuffix is appended by batch transform to every processed
// input object.
const TransformOutputSuffix = ".out"

// Evaluator runs batch inference over the training set and computes anomaly
// thresholds from the reconstruction errors.
type Evaluator struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   mlops.Client
	objects  objectstore.Client
	notifier notifications.Service
}

// NewEvaluator builds the stage handler with real cloud clients.
func NewEvaluator(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Evaluator, error) {
	client, err := mlops.NewSageMaker(ctx, cfg.Cloud.Region, logger)
	if err != nil {
		return nil, err
	}
	objects, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewEvaluatorWithDependencies(cfg, store, logger, client, objects, notifications.NewService(cfg)), nil
}

// NewEvaluatorWithDependencies allows injecting custom dependencies (used for tests).
func NewEvaluatorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client mlops.Client, objects objectstore.Client, notifier notifications.Service) *Evaluator {
	e := &Evaluator{
		store:    store,
		cfg:      cfg,
		client:   client,
		objects:  objects,
		notifier: notifier,
	}
	e.SetLogger(logger)
	return e
}

// SetLogger updates the stage's logging destination while preserving component labeling.
func (e *Evaluator) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, "evaluator")
}

func (e *Evaluator) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.InitProgress("Evaluating", "Launching batch evaluation")
	logger.Debug("starting evaluation preparation")
	return nil
}

func (e *Evaluator) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	if strings.TrimSpace(item.ModelArtifactURI) == "" {
		return services.Wrap(
			services.ErrValidation,
			"evaluating",
			"validate inputs",
			"No trained model artifact recorded; rerun the training stage",
			nil,
		)
	}
	if strings.TrimSpace(item.ShardPrefix) == "" {
		return services.Wrap(
			services.ErrValidation,
			"evaluating",
			"validate inputs",
			"No uploaded shard prefix recorded; rerun the upload stage",
			nil,
		)
	}

	jobName := training.JobName("eval", item)
	outputKey := path.Join(e.cfg.Storage.Prefix, e.cfg.Evaluation.OutputPrefix, jobName)
	spec := mlops.TransformSpec{
		JobName:          jobName,
		ModelName:        training.JobName("model", item),
		Image:            e.cfg.Training.Image,
		RoleArn:          e.cfg.Cloud.RoleArn,
		ModelArtifactURI: item.ModelArtifactURI,
		InputURI:         e.objects.URI(item.ShardPrefix),
		OutputURI:        e.objects.URI(outputKey),
		InstanceType:     e.cfg.Evaluation.InstanceType,
		InstanceCount:    e.cfg.Evaluation.InstanceCount,
	}
	if err := e.client.StartTransformJob(ctx, spec); err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"start transform job",
			"Failed to launch the batch transform job; check cloud credentials and role",
			err,
		)
	}
	item.TransformJobName = jobName
	item.SetProgress("Evaluating", fmt.Sprintf("Transform job %s running", jobName), 25)
	logger.Info("transform job launched", logging.String(logging.FieldJobName, jobName))

	status, err := mlops.PollUntilDone(ctx, jobName, e.pollInterval(), e.client.DescribeTransformJob)
	if err != nil {
		return services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"monitor transform job",
			"Lost track of the transform job; it may still be running in the cloud",
			err,
		)
	}
	if !status.State.Succeeded() {
		return services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"await transform job",
			fmt.Sprintf("Transform job %s ended %s: %s", jobName, status.State, status.FailureReason),
			nil,
		)
	}
	item.SetProgress("Evaluating", "Computing anomaly thresholds", 70)

	values, err := e.computeThresholds(ctx, item, outputKey)
	if err != nil {
		return err
	}

	thresholdsJSON, err := json.Marshal(values)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"evaluating",
			"encode thresholds",
			"Failed to encode anomaly thresholds",
			err,
		)
	}
	thresholdsKey := path.Join(e.cfg.Storage.Prefix, "thresholds", fmt.Sprintf("%s-%d.json", item.DatasetLabel, item.ID))
	if err := e.objects.Put(ctx, thresholdsKey, bytes.NewReader(thresholdsJSON), int64(len(thresholdsJSON)), "application/json"); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"evaluating",
			"upload thresholds",
			"Failed to upload anomaly thresholds; check object storage connectivity",
			err,
		)
	}

	item.ThresholdsJSON = string(thresholdsJSON)
	item.ThresholdsURI = e.objects.URI(thresholdsKey)
	item.SetProgressComplete("Evaluated", fmt.Sprintf("Thresholds at %s", item.ThresholdsURI))
	logger.Info("thresholds computed",
		logging.String(logging.FieldEventType, "thresholds_computed"),
		logging.String("uri", item.ThresholdsURI))
	if e.notifier != nil {
		if err := e.notifier.NotifyThresholdsComputed(ctx, item.DatasetLabel, values); err != nil {
			logger.Warn("failed to send thresholds notification", logging.Error(err))
		}
	}
	return nil
}

// computeThresholds pairs every transform output with its input shard and
// accumulates reconstruction errors channel by channel.
func (e *Evaluator) computeThresholds(ctx context.Context, item *queue.Item, outputKey string) (map[string]float64, error) {
	outputs, err := e.objects.List(ctx, outputKey)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient,
			"evaluating",
			"list transform outputs",
			"Failed to list transform outputs; check object storage connectivity",
			err,
		)
	}

	acc := NewAccumulator(preprocess.FeatureCount)
	matched := 0
	for _, obj := range outputs {
		if !strings.HasSuffix(obj.Key, TransformOutputSuffix) {
			continue
		}
		shardName := strings.TrimSuffix(path.Base(obj.Key), TransformOutputSuffix)
		inputKey := path.Join(item.ShardPrefix, shardName)

		input, inputShape, err := e.readTensor(ctx, inputKey)
		if err != nil {
			return nil, err
		}
		output, outputShape, err := e.readTensor(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		if len(inputShape) != len(outputShape) {
			return nil, services.Wrap(
				services.ErrExternalService,
				"evaluating",
				"compare tensors",
				fmt.Sprintf("Transform output %s has shape %v, input has %v", obj.Key, outputShape, inputShape),
				nil,
			)
		}
		if err := acc.Add(input, output, inputShape); err != nil {
			return nil, services.Wrap(
				services.ErrExternalService,
				"evaluating",
				"accumulate errors",
				fmt.Sprintf("Transform output %s does not line up with its input shard", obj.Key),
				err,
			)
		}
		matched++
	}
	if matched == 0 {
		return nil, services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"collect transform outputs",
			fmt.Sprintf("Transform job produced no outputs under %s", outputKey),
			nil,
		)
	}

	values, err := acc.Thresholds(preprocess.FeatureNames, e.cfg.Evaluation.StdMultiplier)
	if err != nil {
		return nil, services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"derive thresholds",
			"Failed to derive anomaly thresholds from reconstruction errors",
			err,
		)
	}
	return values, nil
}

func (e *Evaluator) readTensor(ctx context.Context, key string) ([]float32, []int, error) {
	r, err := e.objects.Open(ctx, key)
	if err != nil {
		return nil, nil, services.Wrap(
			services.ErrTransient,
			"evaluating",
			"open tensor",
			fmt.Sprintf("Failed to open %s from object storage", key),
			err,
		)
	}
	defer r.Close()

	data, shape, err := window.ReadNPY(r)
	if err != nil {
		return nil, nil, services.Wrap(
			services.ErrExternalService,
			"evaluating",
			"decode tensor",
			fmt.Sprintf("Object %s is not a readable array", key),
			err,
		)
	}
	return data, shape, nil
}

func (e *Evaluator) HealthCheck(ctx context.Context) stage.Health {
	const name = "evaluator"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if e.client == nil {
		return stage.Unhealthy(name, "transform client unavailable")
	}
	if e.objects == nil {
		return stage.Unhealthy(name, "object storage client unavailable")
	}
	if e.cfg.Evaluation.StdMultiplier <= 0 {
		return stage.Unhealthy(name, "std multiplier must be positive")
	}
	return stage.Healthy(name)
}

func (e *Evaluator) pollInterval() time.Duration {
	return time.Duration(e.cfg.Cloud.PollIntervalSeconds) * time.Second
}
