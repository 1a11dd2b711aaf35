package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePreprocess(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCloud(); err != nil {
		return err
	}
	if err := c.validatePackaging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePreprocess() error {
	if c.Preprocess.WindowStride <= 0 {
		return errors.New("preprocess.window_stride must be positive")
	}
	if c.Preprocess.WaveletLevels <= 0 {
		return errors.New("preprocess.wavelet_levels must be positive")
	}
	if c.Preprocess.MaxShardBytes <= 0 {
		return errors.New("preprocess.max_shard_bytes must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/windsentry/config.toml"
		}
		return fmt.Errorf("storage.bucket is required. Edit %s (create with 'windsentry config new')", defaultPath)
	}
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return errors.New("storage.endpoint must be set")
	}
	return nil
}

func (c *Config) validateCloud() error {
	if strings.TrimSpace(c.Cloud.Region) == "" {
		return errors.New("cloud.region must be set")
	}
	if c.Cloud.PollIntervalSeconds < 0 {
		return errors.New("cloud.poll_interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validatePackaging() error {
	if strings.TrimSpace(c.Packaging.ModelName) == "" {
		return errors.New("packaging.model_name must be set")
	}
	if strings.TrimSpace(c.Packaging.ModelVersion) == "" {
		return errors.New("packaging.model_version must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.Broker) == "" {
		return nil
	}
	if strings.TrimSpace(c.Notifications.Topic) == "" {
		return errors.New("notifications.topic must be set when notifications.broker is configured")
	}
	if c.Notifications.QoS < 0 || c.Notifications.QoS > 2 {
		return errors.New("notifications.qos must be 0, 1, or 2")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}
