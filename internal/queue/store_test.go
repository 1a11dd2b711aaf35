package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"windsentry/internal/queue"
	"windsentry/internal/testsupport"
)

func TestOpenAppliesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewDataset(ctx, "/drop/turbine-a.csv.gz", "turbine-a")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.DatasetLabel != "turbine-a" {
		t.Fatalf("expected label inferred from path, got %q", item.DatasetLabel)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.TurbineID != "turbine-a" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	found, err := store.FindBySourcePath(ctx, "/drop/turbine-a.csv.gz")
	if err != nil {
		t.Fatalf("FindBySourcePath failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestUpdateRoundTripsArtifactFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewDataset(ctx, "/drop/turbine-b.csv.gz", "turbine-b")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	item.Status = queue.StatusTrained
	item.ShardManifestJSON = `{"windows":21,"shape":[21,6,10,10]}`
	item.ShardPrefix = "datasets/turbine-b-1"
	item.TrainingJobName = "windsentry-train-1-abc"
	item.ModelArtifactURI = "s3://bucket/models/output.tar.gz"
	item.ThresholdsJSON = `{"rps":0.5}`
	item.ThresholdsURI = "s3://bucket/thresholds/turbine-b-1.json"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ShardPrefix != item.ShardPrefix {
		t.Fatalf("expected shard prefix persisted, got %q", fetched.ShardPrefix)
	}
	if fetched.ModelArtifactURI != item.ModelArtifactURI {
		t.Fatalf("expected model artifact persisted, got %q", fetched.ModelArtifactURI)
	}
	if fetched.ThresholdsJSON != item.ThresholdsJSON {
		t.Fatalf("expected thresholds persisted, got %q", fetched.ThresholdsJSON)
	}
	if fetched.UpdatedAt.Before(fetched.CreatedAt) {
		t.Fatal("expected updated_at to advance")
	}
}

func TestNextForStatusesOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewDataset(ctx, "/drop/a.csv", "a")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	b, err := store.NewDataset(ctx, "/drop/b.csv", "b")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	b.Status = queue.StatusUploaded
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending, queue.StatusUploaded)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != a.ID {
		t.Fatalf("expected oldest matching item %d, got %#v", a.ID, next)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusUploaded)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != b.ID {
		t.Fatalf("expected uploaded item %d, got %#v", b.ID, next)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusTrained)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no trained items, got %#v", next)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewDataset(ctx, "/drop/a.csv", "a")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	b, err := store.NewDataset(ctx, "/drop/b.csv", "b")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	b.Status = queue.StatusUploaded
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c, err := store.NewDataset(ctx, "/drop/c.csv", "c")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	c.Status = queue.StatusFailed
	c.ErrorMessage = "boom"
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("expected order a,b,c, got IDs %d,%d,%d", items[0].ID, items[1].ID, items[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusUploaded, queue.StatusFailed)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 items, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"preprocessing", queue.StatusPreprocessing, queue.StatusPending},
		{"uploading", queue.StatusUploading, queue.StatusPreprocessed},
		{"training", queue.StatusTraining, queue.StatusUploaded},
		{"evaluating", queue.StatusEvaluating, queue.StatusTrained},
		{"compiling", queue.StatusCompiling, queue.StatusEvaluated},
		{"packaging", queue.StatusPackaging, queue.StatusCompiled},
		{"deploying", queue.StatusDeploying, queue.StatusPackaged},
	}
	var ids []int64
	for i, tc := range cases {
		item, err := store.NewDataset(ctx, fmt.Sprintf("/drop/stuck-%d.csv", i), tc.name)
		if err != nil {
			t.Fatalf("NewDataset failed: %v", err)
		}
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestTransitionToProcessingGuardsStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewDataset(ctx, "/drop/claim.csv.gz", "claim")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	now := time.Now().UTC()
	item.Status = queue.StatusPreprocessing
	item.ProgressStage = "Preprocessing"
	item.ProgressMessage = "Preprocessing started"
	item.LastHeartbeat = &now
	claimed, err := store.TransitionToProcessing(ctx, item, queue.StatusPending)
	if err != nil {
		t.Fatalf("TransitionToProcessing failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected pending item to be claimed")
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusPreprocessing {
		t.Fatalf("expected preprocessing status, got %s", updated.Status)
	}
	if updated.LastHeartbeat == nil {
		t.Fatal("expected heartbeat to be set on claim")
	}

	// Simulate an operator resetting the item between read and claim.
	updated.Status = queue.StatusFailed
	updated.ErrorMessage = "stopped by operator"
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stale := *item
	stale.Status = queue.StatusPreprocessing
	claimed, err = store.TransitionToProcessing(ctx, &stale, queue.StatusPending)
	if err != nil {
		t.Fatalf("TransitionToProcessing failed: %v", err)
	}
	if claimed {
		t.Fatal("expected claim to be rejected after status changed")
	}

	after, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != queue.StatusFailed {
		t.Fatalf("expected operator status preserved, got %s", after.Status)
	}
	if after.ErrorMessage != "stopped by operator" {
		t.Fatalf("expected error message preserved, got %q", after.ErrorMessage)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour).UTC()

	stale, err := store.NewDataset(ctx, "/drop/stale.csv", "stale")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	stale.Status = queue.StatusTraining
	stale.LastHeartbeat = &past
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh, err := store.NewDataset(ctx, "/drop/fresh.csv", "fresh")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	now := time.Now().UTC()
	fresh.Status = queue.StatusUploading
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 item reclaimed, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusUploaded {
		t.Fatalf("expected training item rolled back to uploaded, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatalf("expected heartbeat cleared, got %v", reclaimed.LastHeartbeat)
	}

	unchanged, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if unchanged.Status != queue.StatusUploading {
		t.Fatalf("expected fresh item untouched, got %s", unchanged.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewDataset(ctx, "/drop/ra.csv", "ra")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	b, err := store.NewDataset(ctx, "/drop/rb.csv", "rb")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	for _, item := range []*queue.Item{a, b} {
		item.Status = queue.StatusFailed
		item.ErrorMessage = "boom"
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 items retried, got %d", updated)
	}

	item, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected item a pending, got %s", item.Status)
	}

	b.Status = queue.StatusFailed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err = store.RetryFailed(ctx, b.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 item retried, got %d", updated)
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewDataset(ctx, "/drop/hb.csv", "hb")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	item.Status = queue.StatusPreprocessing
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.LastHeartbeat == nil {
		t.Fatal("expected last heartbeat to be set")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewDataset(ctx, "/drop/sa.csv", "sa"); err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	failed, err := store.NewDataset(ctx, "/drop/sb.csv", "sb")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	review, err := store.NewDataset(ctx, "/drop/sc.csv", "sc")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	review.SetReview("short telemetry")
	if err := store.Update(ctx, review); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusFailed] != 1 || stats[queue.StatusReview] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestClearCompletedAndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done, err := store.NewDataset(ctx, "/drop/done.csv", "done")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	failed, err := store.NewDataset(ctx, "/drop/failed.csv", "failed")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.NewDataset(ctx, "/drop/live.csv", "live"); err != nil {
		t.Fatalf("NewDataset: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 completed item cleared, got %d", removed)
	}

	removed, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 failed item cleared, got %d", removed)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].DatasetLabel != "live" {
		t.Fatalf("expected only live item to remain, got %#v", items)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  queue.Status
		ok    bool
	}{
		{"pending", queue.StatusPending, true},
		{" Training ", queue.StatusTraining, true},
		{"COMPLETED", queue.StatusCompleted, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.input)
		if ok != tc.ok {
			t.Errorf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}
