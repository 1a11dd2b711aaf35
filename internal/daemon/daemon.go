package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"windsentry/internal/config"
	"windsentry/internal/ingest"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/workflow"
)

// Daemon owns the long-running pieces of the pipeline: the workflow manager,
// the ingest watcher, and the instance lock that keeps a second daemon from
// opening the same queue database.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *ingest.Watcher
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool
}

// Status is a point-in-time snapshot of the daemon for the status command.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New wires a daemon around an already-opened store and configured workflow
// manager. The ingest watcher may be nil when no incoming directory is set.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, watcher *ingest.Watcher, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "configuration is required", nil)
	}
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "queue store is required", nil)
	}
	if manager == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "workflow manager is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: manager,
		watcher:  watcher,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the workflow runner and the
// ingest watcher. It returns an error when another daemon already holds the
// lock.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		d.running.Store(false)
		return services.Wrap(services.ErrTransient, "daemon", "start", fmt.Sprintf("acquire lock %s", d.lockPath), err)
	}
	if !locked {
		d.running.Store(false)
		return fmt.Errorf("another windsentry daemon instance is already running (lock: %s)", d.lockPath)
	}

	if err := d.workflow.Start(ctx); err != nil {
		d.releaseLock()
		d.running.Store(false)
		return err
	}

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.workflow.Stop()
			d.releaseLock()
			d.running.Store(false)
			return err
		}
	}

	for _, health := range d.workflow.Status(ctx).StageHealth {
		if !health.Ready {
			d.logger.Warn("stage not ready", logging.String("stage_health", health.String()))
		}
	}

	d.logger.Info("daemon started",
		logging.String("queue_db", d.cfg.QueueDatabasePath()),
		logging.String("lock_file", d.lockPath),
	)
	return nil
}

// Stop halts the watcher and workflow runner and releases the instance lock.
// It is safe to call on a daemon that never started.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	d.releaseLock()
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start has been called without a matching Stop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock",
			logging.String("lock_file", d.lockPath),
			logging.Error(err),
		)
	}
}

// Status reports the daemon, workflow, and queue state.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// AddDataset validates and queues a telemetry dump by path, bypassing the
// ingest watcher. The path must name an existing CSV or gzipped CSV file.
func (d *Daemon) AddDataset(ctx context.Context, path string) (*queue.Item, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add dataset", "path is required", nil)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add dataset", fmt.Sprintf("resolve path %s", trimmed), err)
	}
	if !ingest.IsTelemetryDump(abs) {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add dataset", fmt.Sprintf("%s is not a telemetry dump (.csv or .csv.gz)", abs), nil)
	}

	if existing, err := d.store.FindBySourcePath(ctx, abs); err == nil && existing != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add dataset", fmt.Sprintf("%s is already queued as dataset #%d", abs, existing.ID), nil)
	}

	item, err := d.store.NewDataset(ctx, abs, ingest.InferTurbineID(abs))
	if err != nil {
		return nil, err
	}

	d.logger.Info("queued telemetry dump",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("source_path", abs),
		logging.String("turbine_id", item.TurbineID),
	)
	if err := d.notifier.NotifyDatasetQueued(ctx, item.DatasetLabel, abs); err != nil {
		d.logger.Debug("dataset queued notification failed", logging.Error(err))
	}
	return item, nil
}

// ListQueue returns queue items, optionally filtered by status.
func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	return d.store.List(ctx, statuses...)
}

// QueueItem fetches a single queue item by ID.
func (d *Daemon) QueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// RemoveQueueItem deletes a single queue item by ID.
func (d *Daemon) RemoveQueueItem(ctx context.Context, id int64) (bool, error) {
	return d.store.Remove(ctx, id)
}

// ClearQueue removes every queue item and returns the number removed.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes completed items from the queue.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed items from the queue.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// ResetStuck rolls items stuck in a processing status back to the preceding
// stable status.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed re-queues failed items. With no IDs every failed item is
// retried.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth summarizes queue database state for the status command.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// TestNotification publishes a test event to the configured broker.
func (d *Daemon) TestNotification(ctx context.Context) error {
	if strings.TrimSpace(d.cfg.Notifications.Broker) == "" {
		return services.Wrap(services.ErrConfiguration, "daemon", "test notification", "no notification broker configured", nil)
	}
	return d.notifier.TestNotification(ctx)
}
