package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBootstrapFilename is looked up in the config directory when no
// explicit file is given.
const DefaultBootstrapFilename = "bridge_config.yaml"

// BootstrapConfig holds the bridge settings loaded from bridge_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig         `yaml:"logging"`
	ZeroMQ     ZeroMQBootstrap       `yaml:"zeromq"`
	Simulation SimulationConfig      `yaml:"simulation"`
	Server     BootstrapServerConfig `yaml:"server"`
	Recording  RecordingConfig       `yaml:"recording"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogPath    string `yaml:"log_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ZeroMQBootstrap holds the peer connection settings
type ZeroMQBootstrap struct {
	PeerAddress        string `yaml:"peer_address"`
	ReplyTimeoutMs     int    `yaml:"reply_timeout_ms"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	PublishBindAddress string `yaml:"publish_bind_address,omitempty"`
}

// SimulationConfig holds stepping settings
type SimulationConfig struct {
	// StepRate is the engine's fixed frequency in steps per second.
	StepRate float64 `yaml:"step_rate"`
	// DefaultPeriod is simulated when a cycle carries no explicit period.
	DefaultPeriod float64 `yaml:"default_period"`
	// MaxPeriod is the longest period a reply may request.
	MaxPeriod float64 `yaml:"max_period"`
}

// BootstrapServerConfig holds the status API settings. Port 0 disables it.
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// RecordingConfig holds cycle recording settings. An empty directory
// disables recording.
type RecordingConfig struct {
	Directory string `yaml:"directory,omitempty"`
	QueueSize int    `yaml:"queue_size"`
}

// ReplyTimeout returns the bounded wait for a controller reply.
func (z ZeroMQBootstrap) ReplyTimeout() time.Duration {
	return time.Duration(z.ReplyTimeoutMs) * time.Millisecond
}

// PollInterval returns how often the reply wait checks for cancellation.
func (z ZeroMQBootstrap) PollInterval() time.Duration {
	return time.Duration(z.PollIntervalMs) * time.Millisecond
}

// DefaultBootstrapConfig returns the settings used when no file is given.
func DefaultBootstrapConfig() *BootstrapConfig {
	cfg := &BootstrapConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *BootstrapConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.ZeroMQ.PeerAddress == "" {
		c.ZeroMQ.PeerAddress = "tcp://localhost:5555"
	}
	if c.ZeroMQ.ReplyTimeoutMs == 0 {
		c.ZeroMQ.ReplyTimeoutMs = 10000
	}
	if c.ZeroMQ.PollIntervalMs == 0 {
		c.ZeroMQ.PollIntervalMs = 100
	}
	if c.Simulation.StepRate == 0 {
		c.Simulation.StepRate = 240
	}
	if c.Simulation.DefaultPeriod == 0 {
		c.Simulation.DefaultPeriod = 1 / c.Simulation.StepRate
	}
	if c.Simulation.MaxPeriod == 0 {
		c.Simulation.MaxPeriod = 60
	}
	if c.Recording.QueueSize == 0 {
		c.Recording.QueueSize = 256
	}
}

// Validate checks the fields the exchange loop depends on.
func (c *BootstrapConfig) Validate() error {
	if c.ZeroMQ.PeerAddress == "" {
		return fmt.Errorf("missing required field in bootstrap config: zeromq.peer_address")
	}
	if c.ZeroMQ.ReplyTimeoutMs < 0 {
		return fmt.Errorf("invalid zeromq.reply_timeout_ms %d: must be positive", c.ZeroMQ.ReplyTimeoutMs)
	}
	if c.ZeroMQ.PollIntervalMs < 0 {
		return fmt.Errorf("invalid zeromq.poll_interval_ms %d: must be positive", c.ZeroMQ.PollIntervalMs)
	}
	if !(c.Simulation.StepRate > 0) {
		return fmt.Errorf("invalid simulation.step_rate %v: must be positive", c.Simulation.StepRate)
	}
	if !(c.Simulation.DefaultPeriod > 0) {
		return fmt.Errorf("invalid simulation.default_period %v: must be positive", c.Simulation.DefaultPeriod)
	}
	if !(c.Simulation.MaxPeriod >= c.Simulation.DefaultPeriod) {
		return fmt.Errorf("invalid simulation.max_period %v: must not be below default_period", c.Simulation.MaxPeriod)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port %d", c.Server.HTTPPort)
	}
	if c.Recording.QueueSize < 0 {
		return fmt.Errorf("invalid recording.queue_size %d", c.Recording.QueueSize)
	}
	return nil
}

// LoadBootstrapConfig loads the bridge configuration from path, fills in
// defaults and validates the result.
func LoadBootstrapConfig(path string) (*BootstrapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", path, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", path, err)
	}

	bootstrapCfg.applyDefaults()
	if err := bootstrapCfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap config file '%s': %w", path, err)
	}
	return &bootstrapCfg, nil
}
