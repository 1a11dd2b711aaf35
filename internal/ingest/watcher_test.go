package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"windsentry/internal/ingest"
	"windsentry/internal/logging"
	"windsentry/internal/queue"
	"windsentry/internal/testsupport"
)

func waitForItem(t *testing.T, store *queue.Store, path string) *queue.Item {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s to be queued", path)
		default:
		}
		item, err := store.FindBySourcePath(context.Background(), path)
		if err != nil {
			t.Fatalf("FindBySourcePath failed: %v", err)
		}
		if item != nil {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcherQueuesExistingDump(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	path := filepath.Join(cfg.Paths.IncomingDir, "turbine-a.csv.gz")
	testsupport.WriteTelemetryDump(t, path, "turbine-a", 10)

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil)
	if watcher == nil {
		t.Fatal("expected watcher")
	}
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(watcher.Stop)

	item := waitForItem(t, store, path)
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.TurbineID != "turbine-a" {
		t.Fatalf("expected turbine id turbine-a, got %q", item.TurbineID)
	}
}

func TestWatcherQueuesDroppedDump(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(watcher.Stop)

	path := filepath.Join(cfg.Paths.IncomingDir, "turbine-b.csv")
	testsupport.WriteTelemetryDump(t, path, "turbine-b", 10)

	waitForItem(t, store, path)
}

func TestWatcherWaitsForDumpToSettle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.IngestSettleInterval = 2
	store := testsupport.MustOpenStore(t, cfg)

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(watcher.Stop)

	// Simulate a dump still being copied in: keep appending for a while
	// and verify it is never queued mid-copy.
	path := filepath.Join(cfg.Paths.IncomingDir, "turbine-d.csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("create dump: %v", err)
	}
	if _, err := f.WriteString("device_id,timestamp\n"); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	for i := 0; i < 10; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, err := f.WriteString("turbine-d,2026-01-01T00:00:00Z\n"); err != nil {
			t.Fatalf("append dump: %v", err)
		}
		item, err := store.FindBySourcePath(context.Background(), path)
		if err != nil {
			t.Fatalf("FindBySourcePath failed: %v", err)
		}
		if item != nil {
			t.Fatal("dump queued while still being written")
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close dump: %v", err)
	}

	waitForItem(t, store, path)
}

func TestWatcherSkipsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	path := filepath.Join(cfg.Paths.IncomingDir, "turbine-c.csv.gz")
	testsupport.WriteTelemetryDump(t, path, "turbine-c", 10)

	existing, err := store.NewDataset(context.Background(), path, "turbine-c")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	watcher.Stop()

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected single item, got %d", len(items))
	}
	if items[0].ID != existing.ID {
		t.Fatalf("expected item %d, got %d", existing.ID, items[0].ID)
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(watcher.Stop)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "notes.txt"), 64)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "partial.tmp"), 64)

	time.Sleep(200 * time.Millisecond)
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestWatcherRequiresIncomingDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.IncomingDir = ""
	store := testsupport.MustOpenStore(t, cfg)

	if watcher := ingest.NewWatcherWithNotifier(cfg, store, logging.NewNop(), nil); watcher != nil {
		t.Fatal("expected nil watcher without incoming dir")
	}
}

func TestIsTelemetryDump(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"turbine-a.csv", true},
		{"turbine-a.csv.gz", true},
		{"TURBINE-A.CSV.GZ", true},
		{"turbine-a.json", false},
		{"turbine-a.gz", false},
		{"readme.txt", false},
	}
	for _, tc := range cases {
		if got := ingest.IsTelemetryDump(tc.path); got != tc.want {
			t.Errorf("IsTelemetryDump(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestInferTurbineID(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/drop/turbine-a.csv.gz", "turbine-a"},
		{"/drop/turbine-a-20260301.csv.gz", "turbine-a"},
		{"/drop/north-ridge-04.csv", "north-ridge-04"},
		{"/drop/t7.csv", "t7"},
	}
	for _, tc := range cases {
		if got := ingest.InferTurbineID(tc.path); got != tc.want {
			t.Errorf("InferTurbineID(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
