package testsupport

import (
	"path/filepath"
	"testing"

	"windsentry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.IncomingDir = filepath.Join(base, "incoming")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Endpoint = "localhost:9000"
	cfgVal.Storage.AccessKey = "test"
	cfgVal.Storage.SecretKey = "test"
	cfgVal.Storage.Bucket = "windsentry-test"
	cfgVal.Cloud.Region = "eu-west-1"
	cfgVal.Cloud.RoleArn = "arn:aws:iam::123456789012:role/windsentry-test"
	cfgVal.Deployment.FleetTargetArn = "arn:aws:iot:eu-west-1:123456789012:thinggroup/turbines-test"
	cfgVal.Workflow.QueuePollInterval = 0
	cfgVal.Workflow.ErrorRetryInterval = 0
	cfgVal.Workflow.HeartbeatInterval = 1
	cfgVal.Workflow.IngestSettleInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWindowStride overrides the preprocessing window stride.
func WithWindowStride(stride int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preprocess.WindowStride = stride
	}
}

// WithMaxShardBytes overrides the shard byte budget.
func WithMaxShardBytes(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preprocess.MaxShardBytes = limit
	}
}

// WithStoragePrefix overrides the object storage key prefix.
func WithStoragePrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Prefix = prefix
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
