package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"windsentry/internal/config"
)

func TestNewServiceReturnsNoopWhenBrokerMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Broker = ""
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyDatasetQueued(context.Background(), "turbine-a", "/incoming/turbine-a.csv.gz"); err != nil {
		t.Fatalf("noop notifier returned error: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "training"); err != nil {
		t.Fatalf("noop notifier returned error: %v", err)
	}
}

func TestNewServiceBuildsMQTTService(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Broker = "tcp://localhost:1883"
	cfg.Notifications.Topic = "windsentry/events/"
	cfg.Notifications.Errors = false

	svc := NewService(&cfg)
	mq, ok := svc.(*mqttService)
	if !ok {
		t.Fatalf("expected mqtt service, got %T", svc)
	}
	if mq.topic != "windsentry/events" {
		t.Fatalf("trailing slash not trimmed: %q", mq.topic)
	}
	if mq.enabled["error"] {
		t.Fatal("error events should be disabled")
	}
	if !mq.enabled["test"] {
		t.Fatal("test events should always be enabled")
	}
}

func TestPreprocessingEventsHaveTheirOwnToggle(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Broker = "tcp://localhost:1883"
	cfg.Notifications.DatasetQueued = true
	cfg.Notifications.Preprocessing = false

	mq := NewService(&cfg).(*mqttService)
	if !mq.enabled["dataset_queued"] {
		t.Fatal("dataset_queued should be enabled")
	}
	if mq.enabled["preprocessing_complete"] {
		t.Fatal("preprocessing_complete should follow its own toggle")
	}
}

func TestDisabledEventsAreSkippedWithoutConnecting(t *testing.T) {
	svc := &mqttService{enabled: map[string]bool{}}
	// Client is nil; a publish attempt would panic, so a nil error proves
	// the event was filtered before any broker traffic.
	if err := svc.NotifyTrainingStarted(context.Background(), "turbine-a", "job-1"); err != nil {
		t.Fatal(err)
	}
}

func TestEventPayloadShape(t *testing.T) {
	evt := event{
		Event:     "training_complete",
		Message:   "Training complete: turbine-a",
		Dataset:   "turbine-a",
		Fields:    map[string]string{"job": "job-1"},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"event", "message", "dataset", "fields", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("payload missing %q: %s", key, raw)
		}
	}
}
