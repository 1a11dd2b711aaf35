package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"windsentry/internal/queue"
	"windsentry/internal/testsupport"
)

func TestProcessRunsPreprocessStage(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	dump := filepath.Join(env.baseDir, "turbine-a.csv.gz")
	testsupport.WriteTelemetryDump(t, dump, "turbine-a", 500)

	item, err := env.store.NewDataset(ctx, dump, "turbine-a")
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}

	out, _, err := runCLI(t, []string{"process", fmt.Sprintf("%d", item.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "advanced to Preprocessed")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if updated.Status != queue.StatusPreprocessed {
		t.Fatalf("expected preprocessed, got %s", updated.Status)
	}
	if updated.ShardManifestJSON == "" {
		t.Fatal("expected shard manifest after preprocessing")
	}
}

func TestProcessRejectsNonRunnableStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDataset(ctx, "/drop/turbine-a.csv.gz", "turbine-a")
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	item.Status = queue.StatusCompleted
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	_, _, err = runCLI(t, []string{"process", fmt.Sprintf("%d", item.ID)}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no runnable stage") {
		t.Fatalf("expected no runnable stage error, got %v", err)
	}
}

func TestProcessUnknownItem(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"process", "404"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
