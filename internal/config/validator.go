package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProjectRootRequired is returned when no project root is configured.
var ErrProjectRootRequired = errors.New("project_root is required")

// ValidationError aggregates every problem found in a config.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("gateway port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	for _, valid := range validLevels {
		if strings.EqualFold(level, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSampleRate validates a default sample rate
func (v *Validator) ValidateSampleRate(rate int) error {
	if rate < 8000 || rate > 768000 {
		return fmt.Errorf("default sample rate must be between 8000 and 768000, got %d", rate)
	}
	return nil
}

// ValidateChannels validates a default channel count
func (v *Validator) ValidateChannels(channels int) error {
	if channels < 1 || channels > 64 {
		return fmt.Errorf("default channels must be between 1 and 64, got %d", channels)
	}
	return nil
}

// ValidateConfig validates the entire configuration
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if strings.TrimSpace(cfg.ProjectRoot) == "" {
		errs = append(errs, ErrProjectRootRequired)
	}

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		errs = append(errs, err)
	}
	if cfg.Gateway.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("gateway requests_per_minute cannot be negative"))
	}
	if cfg.Gateway.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("gateway max_concurrent cannot be negative"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.MaxSize < 0 || cfg.Logging.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("logging max_size and max_age cannot be negative"))
	}

	if err := v.ValidateSampleRate(cfg.Recording.DefaultSampleRate); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateChannels(cfg.Recording.DefaultChannels); err != nil {
		errs = append(errs, err)
	}
	if cfg.Recording.EventQueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("recording event_queue_capacity cannot be negative"))
	}

	return errs
}
