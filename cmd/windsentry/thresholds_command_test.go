package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"windsentry/internal/queue"
)

func TestThresholdsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDataset(ctx, "/drop/turbine-a.csv.gz", "turbine-a")
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	item.Status = queue.StatusEvaluated
	item.ThresholdsJSON = `{"roll":0.012345,"pitch":0.023456,"yaw":0.034567}`
	item.ThresholdsURI = "s3://windsentry-test/thresholds/turbine-a-1.json"
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, _, err := runCLI(t, []string{"thresholds", fmt.Sprintf("%d", item.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	requireContains(t, out, "pitch")
	requireContains(t, out, "0.012345")
	requireContains(t, out, item.ThresholdsURI)
}

func TestThresholdsCommandBeforeEvaluation(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDataset(ctx, "/drop/turbine-a.csv.gz", "turbine-a")
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}

	_, _, err = runCLI(t, []string{"thresholds", fmt.Sprintf("%d", item.ID)}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no thresholds yet") {
		t.Fatalf("expected missing thresholds error, got %v", err)
	}
}

func TestThresholdsCommandUnknownItem(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"thresholds", "42"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
