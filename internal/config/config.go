package config

import (
	"encoding/json"
)

// Config represents the main recbridge configuration
type Config struct {
	// Project root under which recordings are stored
	ProjectRoot string `json:"project_root" mapstructure:"project_root"`

	// Data directory for PID, logs and audit trail
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Recording defaults
	Recording RecordingConfig `json:"recording" mapstructure:"recording"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port              int    `json:"port" mapstructure:"port"`
	Host              string `json:"host" mapstructure:"host"`
	SharedSecret      string `json:"shared_secret" mapstructure:"shared_secret"`
	RequestsPerMinute int    `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int    `json:"max_concurrent" mapstructure:"max_concurrent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// RecordingConfig holds capture defaults applied when a request omits them
type RecordingConfig struct {
	DefaultSampleRate  int    `json:"default_sample_rate" mapstructure:"default_sample_rate"`
	DefaultChannels    int    `json:"default_channels" mapstructure:"default_channels"`
	DefaultFileName    string `json:"default_file_name" mapstructure:"default_file_name"`
	EventQueueCapacity int    `json:"event_queue_capacity" mapstructure:"event_queue_capacity"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:              7420,
			Host:              "127.0.0.1",
			RequestsPerMinute: 120,
			MaxConcurrent:     4,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Recording: RecordingConfig{
			DefaultSampleRate:  16000,
			DefaultChannels:    1,
			DefaultFileName:    "recording.wav",
			EventQueueCapacity: 1024,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Gateway.SharedSecret != "" {
		masked.Gateway.SharedSecret = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	errs := NewValidator().ValidateConfig(c)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}
