package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	loader   *Loader
	logger   zerolog.Logger
	onChange func(*Config)

	mu      sync.Mutex
	current *Config
	stopped bool
}

// NewWatcher creates a watcher for the loader's config file. onChange
// receives every successfully decoded and validated config.
func NewWatcher(loader *Loader, logger zerolog.Logger, onChange func(*Config)) *Watcher {
	return &Watcher{
		loader:   loader,
		logger:   logger.With().Str("component", "config-watcher").Logger(),
		onChange: onChange,
	}
}

// Start begins watching. The config file must exist.
func (w *Watcher) Start() error {
	path := w.loader.GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	v, err := w.loader.newViper()
	if err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	initial, err := decode(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = initial
	w.mu.Unlock()

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		w.reload(e.Name, func() (*Config, error) { return decode(v) })
	})
	v.WatchConfig()

	w.logger.Info().Str("path", path).Msg("Watching config file")
	return nil
}

// Stop makes the watcher ignore further changes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// Current returns the last applied config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Watcher) reload(name string, load func() (*Config, error)) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	cfg, err := load()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", name).Msg("Ignoring unreadable config change")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn().Err(err).Str("path", name).Msg("Ignoring invalid config change")
		return
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info().Str("path", name).Msg("Config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
