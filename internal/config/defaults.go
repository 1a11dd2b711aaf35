package config

const (
	defaultIncomingDir     = "~/.local/share/windsentry/incoming"
	defaultStagingDir      = "~/.local/share/windsentry/staging"
	defaultDataDir         = "~/.local/share/windsentry/data"
	defaultLogDir          = "~/.local/share/windsentry/logs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultWindowStride    = 20
	defaultWaveletLevels   = 4
	defaultMaxShardBytes   = 64 << 20
	defaultCloudPollSeconds = 30
	defaultStdMultiplier   = 3.0
	defaultTargetSelection = "SNAPSHOT"
	defaultModelVersion    = "1.0"
	defaultNotifyTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			StagingDir:  defaultStagingDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
		},
		Preprocess: Preprocess{
			WindowStride:  defaultWindowStride,
			WaveletLevels: defaultWaveletLevels,
			MaxShardBytes: defaultMaxShardBytes,
		},
		Cloud: Cloud{
			Region:              "us-east-1",
			PollIntervalSeconds: defaultCloudPollSeconds,
		},
		Training: Training{
			InstanceType:      "ml.c5.xlarge",
			InstanceCount:     1,
			VolumeSizeGB:      30,
			MaxRuntimeSeconds: 3600,
			OutputPrefix:      "models",
		},
		Evaluation: Evaluation{
			InstanceType:  "ml.c5.xlarge",
			InstanceCount: 1,
			OutputPrefix:  "reconstructions",
			StdMultiplier: defaultStdMultiplier,
		},
		Compilation: Compilation{
			Framework:       "PYTORCH",
			DataInputConfig: `{"input0": [1, 6, 10, 10]}`,
			TargetOS:        "LINUX",
			TargetArch:      "ARM64",
			OutputPrefix:    "compiled",
		},
		Packaging: Packaging{
			ModelName:    "wind-turbine-anomaly",
			ModelVersion: defaultModelVersion,
			OutputPrefix: "packaged",
		},
		Deployment: Deployment{
			TargetSelection: defaultTargetSelection,
		},
		Notifications: Notifications{
			QoS:            1,
			TimeoutSeconds: defaultNotifyTimeout,
			DatasetQueued:  true,
			Preprocessing:  true,
			Training:       true,
			Deployment:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:    5,
			ErrorRetryInterval:   10,
			HeartbeatInterval:    15,
			HeartbeatTimeout:     120,
			IngestRescanInterval: 60,
			IngestSettleInterval: 2,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
