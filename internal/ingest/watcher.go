package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"windsentry/internal/config"
	"windsentry/internal/logging"
	"windsentry/internal/notifications"
	"windsentry/internal/queue"
)

// Watcher observes the incoming directory and enqueues telemetry dumps.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	dir            string
	rescanInterval time.Duration
	settleInterval time.Duration

	// pending tracks dumps seen once but not yet stable; a dump is queued
	// only after its size and mtime survive one settle interval unchanged.
	pendingMu sync.Mutex
	pending   map[string]observation

	stateMu sync.Mutex
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher builds a watcher for the configured incoming directory. Returns
// nil when no incoming directory is configured; ingest is then manual only.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Watcher {
	return NewWatcherWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewWatcherWithNotifier builds a watcher with a custom notifier (used in tests).
func NewWatcherWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	if cfg == nil || store == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.IncomingDir)
	if dir == "" {
		return nil
	}

	rescan := time.Duration(cfg.Workflow.IngestRescanInterval) * time.Second
	if rescan <= 0 {
		rescan = time.Minute
	}
	settle := time.Duration(cfg.Workflow.IngestSettleInterval) * time.Second
	if settle <= 0 {
		settle = 2 * time.Second
	}

	return &Watcher{
		cfg:            cfg,
		store:          store,
		logger:         logging.NewComponentLogger(logger, "ingest-watcher"),
		notifier:       notifier,
		dir:            dir,
		rescanInterval: rescan,
		settleInterval: settle,
		pending:        make(map[string]observation),
	}
}

type observation struct {
	size    int64
	modTime time.Time
	seen    time.Time
}

func (o observation) matches(info os.FileInfo) bool {
	return o.size == info.Size() && o.modTime.Equal(info.ModTime())
}

// Start begins watching until the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("ingest watcher unavailable")
	}
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.running {
		return errors.New("ingest watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		fsWatcher.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx, fsWatcher)
	return nil
}

// Stop terminates watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.stateMu.Lock()
	if !w.running {
		w.stateMu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsWatcher.Close()

	w.scan(ctx)

	ticker := time.NewTicker(w.rescanInterval)
	defer ticker.Stop()
	settle := time.NewTicker(w.settleInterval)
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		case <-settle.C:
			w.flushSettled(ctx)
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Write) {
				w.handlePath(ctx, event.Name)
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("incoming directory watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ingest_watch_error"),
			)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("incoming directory scan failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ingest_scan_failed"),
		)
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		w.handlePath(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) handlePath(ctx context.Context, path string) {
	if !IsTelemetryDump(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		w.pendingMu.Lock()
		delete(w.pending, path)
		w.pendingMu.Unlock()
		return
	}

	w.pendingMu.Lock()
	if prev, ok := w.pending[path]; !ok || !prev.matches(info) {
		w.pending[path] = observation{size: info.Size(), modTime: info.ModTime(), seen: time.Now()}
	}
	w.pendingMu.Unlock()
}

// flushSettled queues pending dumps whose size and mtime have stayed unchanged
// for at least one settle interval. Dumps still being copied in keep producing
// fresh observations and stay pending.
func (w *Watcher) flushSettled(ctx context.Context) {
	now := time.Now()

	w.pendingMu.Lock()
	snapshot := make(map[string]observation, len(w.pending))
	for path, obs := range w.pending {
		snapshot[path] = obs
	}
	w.pendingMu.Unlock()

	for path, obs := range snapshot {
		if ctx.Err() != nil {
			return
		}
		if now.Sub(obs.seen) < w.settleInterval {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			w.pendingMu.Lock()
			delete(w.pending, path)
			w.pendingMu.Unlock()
			continue
		}
		w.pendingMu.Lock()
		if !obs.matches(info) {
			w.pending[path] = observation{size: info.Size(), modTime: info.ModTime(), seen: time.Now()}
			w.pendingMu.Unlock()
			continue
		}
		delete(w.pending, path)
		w.pendingMu.Unlock()

		w.enqueue(ctx, path)
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	existing, err := w.store.FindBySourcePath(ctx, path)
	if err != nil {
		w.logger.Error("queue lookup failed; dump not queued",
			logging.Error(err),
			logging.String("source_file", path),
			logging.String(logging.FieldEventType, "ingest_lookup_failed"),
		)
		return
	}
	if existing != nil {
		return
	}

	turbineID := InferTurbineID(path)
	item, err := w.store.NewDataset(ctx, path, turbineID)
	if err != nil {
		w.logger.Error("failed to enqueue telemetry dump",
			logging.Error(err),
			logging.String("source_file", path),
			logging.String(logging.FieldEventType, "ingest_enqueue_failed"),
		)
		return
	}

	w.logger.Info("queued telemetry dump",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldDataset, item.DatasetLabel),
		logging.String("turbine_id", turbineID),
		logging.String("source_file", path),
		logging.String(logging.FieldEventType, "dataset_queued"),
	)
	if w.notifier != nil {
		if err := w.notifier.NotifyDatasetQueued(ctx, item.DatasetLabel, path); err != nil {
			w.logger.Debug("dataset queued notification failed", logging.Error(err))
		}
	}
}

// IsTelemetryDump reports whether a path looks like a raw telemetry dump.
func IsTelemetryDump(path string) bool {
	lower := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz")
}

// InferTurbineID derives a turbine identifier from the dump filename. The
// fleet exporter names dumps `<turbine>.csv.gz` or `<turbine>-<date>.csv.gz`.
func InferTurbineID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".csv")
	if idx := strings.LastIndex(base, "-"); idx > 0 {
		suffix := base[idx+1:]
		if len(suffix) >= 8 && isDigits(strings.ReplaceAll(suffix, "_", "")) {
			base = base[:idx]
		}
	}
	return strings.TrimSpace(base)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
