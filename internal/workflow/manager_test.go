package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"windsentry/internal/logging"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/stage"
	"windsentry/internal/testsupport"
	"windsentry/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(*queue.Item)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	if s.executeHook != nil {
		s.executeHook(item)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func fullStageSet() workflow.StageSet {
	return workflow.StageSet{
		Preprocessor: newStubStage("preprocessor"),
		Uploader:     newStubStage("uploader"),
		Trainer:      newStubStage("trainer"),
		Evaluator:    newStubStage("evaluator"),
		Compiler:     newStubStage("compiler"),
		Packager:     newStubStage("packager"),
		Deployer:     newStubStage("deployer"),
	}
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		updated, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status == want {
			return updated
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(fullStageSet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item, err := store.NewDataset(ctx, "/data/turbine-a.csv.gz", "turbine-a")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	updated := waitForStatus(t, store, item.ID, queue.StatusCompleted)
	if updated.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %v", updated.ProgressPercent)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("expected clean error message, got %q", updated.ErrorMessage)
	}

	deadline := time.After(10 * time.Second)
	for notifier.completedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected pipeline completion notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerCarriesArtifactsBetweenStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	trainer := newStubStage("trainer")
	trainer.executeHook = func(item *queue.Item) {
		item.ModelArtifactURI = "s3://bucket/models/output.tar.gz"
	}
	set.Trainer = trainer
	deployer := newStubStage("deployer")
	var mu sync.Mutex
	seenArtifact := ""
	deployer.executeHook = func(item *queue.Item) {
		mu.Lock()
		seenArtifact = item.ModelArtifactURI
		mu.Unlock()
	}
	set.Deployer = deployer

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item, err := store.NewDataset(ctx, "/data/turbine-b.csv.gz", "turbine-b")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	waitForStatus(t, store, item.ID, queue.StatusCompleted)
	mu.Lock()
	defer mu.Unlock()
	if seenArtifact != "s3://bucket/models/output.tar.gz" {
		t.Fatalf("expected deployer to see trainer artifact, got %q", seenArtifact)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newStubStage("preprocessor")
	handler.health = stage.Unhealthy(handler.name, "staging directory missing")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Preprocessor: handler})

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth[handler.name]
	if !ok {
		t.Fatalf("expected stage health entry for %s", handler.name)
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != "staging directory missing" {
		t.Fatalf("unexpected detail %q", health.Detail)
	}
}

func TestManagerValidationFailureParksForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := newStubStage("preprocessor")
	failing.executeErr = services.Wrap(services.ErrValidation, "preprocessor", "execute", "telemetry too short", nil)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Preprocessor: failing})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item, err := store.NewDataset(ctx, "/data/turbine-c.csv.gz", "turbine-c")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	updated := waitForStatus(t, store, item.ID, queue.StatusReview)
	if !updated.NeedsReview {
		t.Fatal("expected NeedsReview to be set")
	}
	if updated.ReviewReason == "" {
		t.Fatal("expected review reason to be populated")
	}
}

func TestManagerFailureDefaultsToFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := newStubStage("trainer")
	failing.executeErr = fmt.Errorf("boom")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Trainer: failing})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item, err := store.NewDataset(ctx, "/data/turbine-d.csv.gz", "turbine-d")
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	item.Status = queue.StatusUploaded
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if updated.ProgressStage != "Failed" {
		t.Fatalf("expected progress stage 'Failed', got %s", updated.ProgressStage)
	}
	if updated.ErrorMessage == "" {
		t.Fatal("expected error message to be populated")
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected Start to fail without configured stages")
	}
}

type managerNotifier struct {
	mu        sync.Mutex
	completed []string
	errors    []string
}

func (m *managerNotifier) completedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completed)
}

func (m *managerNotifier) NotifyDatasetQueued(context.Context, string, string) error { return nil }
func (m *managerNotifier) NotifyPreprocessingCompleted(context.Context, string, int, int) error {
	return nil
}
func (m *managerNotifier) NotifyTrainingStarted(context.Context, string, string) error   { return nil }
func (m *managerNotifier) NotifyTrainingCompleted(context.Context, string, string) error { return nil }
func (m *managerNotifier) NotifyThresholdsComputed(context.Context, string, map[string]float64) error {
	return nil
}
func (m *managerNotifier) NotifyDeploymentDispatched(context.Context, string, string, string) error {
	return nil
}

func (m *managerNotifier) NotifyPipelineCompleted(_ context.Context, label string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, label)
	return nil
}

func (m *managerNotifier) NotifyError(_ context.Context, err error, contextLabel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, contextLabel)
	return nil
}

func (m *managerNotifier) TestNotification(context.Context) error { return nil }
