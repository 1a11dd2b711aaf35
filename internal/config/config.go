package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	IncomingDir string `toml:"incoming_dir"`
	StagingDir  string `toml:"staging_dir"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
}

// Preprocess contains signal-preparation settings for raw telemetry.
type Preprocess struct {
	// WindowStride is the sample offset between consecutive windows.
	WindowStride int `toml:"window_stride"`
	// WaveletLevels is the DWT decomposition depth used for denoising.
	WaveletLevels int `toml:"wavelet_levels"`
	// MaxShardBytes caps the size of each tensor shard file.
	MaxShardBytes int64 `toml:"max_shard_bytes"`
}

// Storage contains S3-compatible object storage settings.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Cloud contains settings shared by every managed-job client.
type Cloud struct {
	Region              string `toml:"region"`
	RoleArn             string `toml:"role_arn"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Training contains managed training job settings.
type Training struct {
	Image             string            `toml:"image"`
	InstanceType      string            `toml:"instance_type"`
	InstanceCount     int               `toml:"instance_count"`
	VolumeSizeGB      int               `toml:"volume_size_gb"`
	MaxRuntimeSeconds int               `toml:"max_runtime_seconds"`
	Hyperparameters   map[string]string `toml:"hyperparameters"`
	OutputPrefix      string            `toml:"output_prefix"`
}

// Evaluation contains batch inference and threshold settings.
type Evaluation struct {
	InstanceType  string  `toml:"instance_type"`
	InstanceCount int     `toml:"instance_count"`
	OutputPrefix  string  `toml:"output_prefix"`
	// StdMultiplier is k in threshold = mean(|err|) + k*std(|err|).
	StdMultiplier float64 `toml:"std_multiplier"`
}

// Compilation contains edge model compilation settings.
type Compilation struct {
	Framework       string `toml:"framework"`
	DataInputConfig string `toml:"data_input_config"`
	TargetOS        string `toml:"target_os"`
	TargetArch      string `toml:"target_arch"`
	TargetAccel     string `toml:"target_accelerator"`
	CompilerOptions string `toml:"compiler_options"`
	OutputPrefix    string `toml:"output_prefix"`
}

// Packaging contains edge packaging job settings.
type Packaging struct {
	ModelName    string `toml:"model_name"`
	ModelVersion string `toml:"model_version"`
	OutputPrefix string `toml:"output_prefix"`
}

// Deployment contains fleet job dispatch settings.
type Deployment struct {
	FleetTargetArn  string `toml:"fleet_target_arn"`
	TargetSelection string `toml:"target_selection"`
}

// Notifications contains MQTT notification settings.
type Notifications struct {
	Broker         string `toml:"broker"`
	Topic          string `toml:"topic"`
	ClientID       string `toml:"client_id"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	QoS            int    `toml:"qos"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DatasetQueued  bool   `toml:"dataset_queued"`
	Preprocessing  bool   `toml:"preprocessing"`
	Training       bool   `toml:"training"`
	Deployment     bool   `toml:"deployment"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	// IngestRescanInterval is how often the incoming directory is rescanned
	// for dumps that arrived while the watcher was not running.
	IngestRescanInterval int `toml:"ingest_rescan_interval"`
	// IngestSettleInterval is how long a dump's size and mtime must stay
	// unchanged before it is queued. Guards against picking up a file
	// that is still being copied in.
	IngestSettleInterval int `toml:"ingest_settle_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for windsentry.
//
// Configuration sections by subsystem:
//   - Paths: incoming/staging/data/log directories
//   - Preprocess: windowing, wavelet denoising, shard sizing
//   - Storage: S3-compatible object storage for shards and artifacts
//   - Cloud: region, execution role, and job polling cadence
//   - Training / Evaluation / Compilation / Packaging: managed job settings
//   - Deployment: fleet job dispatch target
//   - Notifications: MQTT operator notifications
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Preprocess    Preprocess    `toml:"preprocess"`
	Storage       Storage       `toml:"storage"`
	Cloud         Cloud         `toml:"cloud"`
	Training      Training      `toml:"training"`
	Evaluation    Evaluation    `toml:"evaluation"`
	Compilation   Compilation   `toml:"compilation"`
	Packaging     Packaging     `toml:"packaging"`
	Deployment    Deployment    `toml:"deployment"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/windsentry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("windsentry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.IncomingDir) != "" {
		// Best-effort so config load survives an unmounted drop directory.
		_ = os.MkdirAll(c.Paths.IncomingDir, 0o755)
	}
	return nil
}

// QueueDatabasePath returns the location of the queue SQLite database.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockFilePath returns the daemon single-instance lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "windsentryd.lock")
}

// PollInterval returns the managed-job polling cadence in seconds, defaulted.
func (c *Config) PollInterval() int {
	if c.Cloud.PollIntervalSeconds <= 0 {
		return defaultCloudPollSeconds
	}
	return c.Cloud.PollIntervalSeconds
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.IncomingDir != "" {
		if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
			return fmt.Errorf("paths.incoming_dir: %w", err)
		}
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("WINDSENTRY_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("WINDSENTRY_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if c.Deployment.TargetSelection == "" {
		c.Deployment.TargetSelection = defaultTargetSelection
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
