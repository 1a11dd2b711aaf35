package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"windsentry/internal/config"
)

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDatasetQueued(ctx context.Context, label, sourcePath string) error
	NotifyPreprocessingCompleted(ctx context.Context, label string, windows, shards int) error
	NotifyTrainingStarted(ctx context.Context, label, jobName string) error
	NotifyTrainingCompleted(ctx context.Context, label, jobName string) error
	NotifyThresholdsComputed(ctx context.Context, label string, thresholds map[string]float64) error
	NotifyDeploymentDispatched(ctx context.Context, label, jobID, modelVersion string) error
	NotifyPipelineCompleted(ctx context.Context, label string, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// event is the JSON payload published for every notification.
type event struct {
	Event     string            `json:"event"`
	Message   string            `json:"message"`
	Dataset   string            `json:"dataset,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewService builds a notification service backed by MQTT when a broker is
// configured. Without a broker a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	broker := strings.TrimSpace(cfg.Notifications.Broker)
	if broker == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.Notifications.ClientID)
	if cfg.Notifications.Username != "" {
		opts.SetUsername(cfg.Notifications.Username)
		opts.SetPassword(cfg.Notifications.Password)
	}
	opts.SetConnectTimeout(timeout)
	opts.SetAutoReconnect(true)

	return &mqttService{
		client:  mqtt.NewClient(opts),
		topic:   strings.TrimSuffix(cfg.Notifications.Topic, "/"),
		qos:     byte(cfg.Notifications.QoS),
		timeout: timeout,
		enabled: map[string]bool{
			"dataset_queued":         cfg.Notifications.DatasetQueued,
			"preprocessing_complete": cfg.Notifications.Preprocessing,
			"training_started":       cfg.Notifications.Training,
			"training_complete":      cfg.Notifications.Training,
			"thresholds_computed":    cfg.Notifications.Training,
			"deployment_dispatched":  cfg.Notifications.Deployment,
			"pipeline_complete":      cfg.Notifications.Deployment,
			"error":                  cfg.Notifications.Errors,
			"test":                   true,
		},
	}
}

type mqttService struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	enabled map[string]bool

	mu sync.Mutex
}

func (s *mqttService) NotifyDatasetQueued(ctx context.Context, label, sourcePath string) error {
	return s.publish(ctx, event{
		Event:   "dataset_queued",
		Message: fmt.Sprintf("Dataset queued: %s", label),
		Dataset: label,
		Fields:  map[string]string{"source": sourcePath},
	})
}

func (s *mqttService) NotifyPreprocessingCompleted(ctx context.Context, label string, windows, shards int) error {
	return s.publish(ctx, event{
		Event:   "preprocessing_complete",
		Message: fmt.Sprintf("Preprocessing complete: %s (%d windows, %d shards)", label, windows, shards),
		Dataset: label,
		Fields: map[string]string{
			"windows": fmt.Sprint(windows),
			"shards":  fmt.Sprint(shards),
		},
	})
}

func (s *mqttService) NotifyTrainingStarted(ctx context.Context, label, jobName string) error {
	return s.publish(ctx, event{
		Event:   "training_started",
		Message: fmt.Sprintf("Training started: %s", label),
		Dataset: label,
		Fields:  map[string]string{"job": jobName},
	})
}

func (s *mqttService) NotifyTrainingCompleted(ctx context.Context, label, jobName string) error {
	return s.publish(ctx, event{
		Event:   "training_complete",
		Message: fmt.Sprintf("Training complete: %s", label),
		Dataset: label,
		Fields:  map[string]string{"job": jobName},
	})
}

func (s *mqttService) NotifyThresholdsComputed(ctx context.Context, label string, thresholds map[string]float64) error {
	fields := make(map[string]string, len(thresholds))
	for name, value := range thresholds {
		fields[name] = fmt.Sprintf("%.6f", value)
	}
	return s.publish(ctx, event{
		Event:   "thresholds_computed",
		Message: fmt.Sprintf("Anomaly thresholds computed: %s", label),
		Dataset: label,
		Fields:  fields,
	})
}

func (s *mqttService) NotifyDeploymentDispatched(ctx context.Context, label, jobID, modelVersion string) error {
	return s.publish(ctx, event{
		Event:   "deployment_dispatched",
		Message: fmt.Sprintf("Fleet deployment dispatched: %s (model version %s)", label, modelVersion),
		Dataset: label,
		Fields: map[string]string{
			"job":     jobID,
			"version": modelVersion,
		},
	})
}

func (s *mqttService) NotifyPipelineCompleted(ctx context.Context, label string, duration time.Duration) error {
	return s.publish(ctx, event{
		Event:   "pipeline_complete",
		Message: fmt.Sprintf("Pipeline complete: %s in %s", label, duration.Round(time.Second)),
		Dataset: label,
		Fields:  map[string]string{"duration": duration.Round(time.Second).String()},
	})
}

func (s *mqttService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	message := "Unknown error"
	if err != nil {
		message = err.Error()
	}
	return s.publish(ctx, event{
		Event:   "error",
		Message: fmt.Sprintf("Error: %s (%s)", message, contextLabel),
		Fields:  map[string]string{"context": contextLabel},
	})
}

func (s *mqttService) TestNotification(ctx context.Context) error {
	return s.publish(ctx, event{
		Event:   "test",
		Message: "Notification test",
	})
}

func (s *mqttService) publish(ctx context.Context, evt event) error {
	if !s.enabled[evt.Event] {
		return nil
	}
	evt.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return err
	}

	topic := s.topic + "/" + evt.Event
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (s *mqttService) ensureConnected() error {
	if s.client.IsConnectionOpen() {
		return nil
	}
	token := s.client.Connect()
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt connect timed out after %s", s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyDatasetQueued(context.Context, string, string) error            { return nil }
func (noopService) NotifyPreprocessingCompleted(context.Context, string, int, int) error { return nil }
func (noopService) NotifyTrainingStarted(context.Context, string, string) error          { return nil }
func (noopService) NotifyTrainingCompleted(context.Context, string, string) error        { return nil }
func (noopService) NotifyThresholdsComputed(context.Context, string, map[string]float64) error {
	return nil
}
func (noopService) NotifyDeploymentDispatched(context.Context, string, string, string) error {
	return nil
}
func (noopService) NotifyPipelineCompleted(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
