package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/recbridge/internal/config"
	"github.com/harun/recbridge/internal/logger"
	"github.com/harun/recbridge/internal/observability"
	"github.com/harun/recbridge/internal/tracing"
	"github.com/harun/recbridge/pkg/gateway"
	"github.com/harun/recbridge/pkg/native"
	"github.com/harun/recbridge/pkg/recording"
	"github.com/rs/zerolog"
)

// Daemon owns the recording bridge process: native bridge, coordinator,
// gateway and config watcher.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	bridge        *native.Bridge
	events        *recording.EventQueue
	coordinator   *recording.Coordinator
	gatewayServer *gateway.Server
	watcher       *config.Watcher
	lifecycle     *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	PID       int
	Addr      string
}

// Version is the recbridge release reported by the CLI and trace resources.
const Version = "0.1.0"

var newCaptureABI = native.DefaultABI

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	tracingEnabled := true
	if err := tracing.InitOpenTelemetry("recbridge", Version); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		tracingEnabled = false
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		tracingEnabled: tracingEnabled,
	}

	if err := d.initializeModules(); err != nil {
		cancel()
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize modules: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)
	return d, nil
}

// initializeModules wires bridge, coordinator and gateway in dependency order.
func (d *Daemon) initializeModules() error {
	base := d.logger.GetZerolog()

	auditPath := filepath.Join(d.config.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	} else {
		d.logger.Debug().Str("path", auditPath).Msg("Audit logger initialized")
	}

	bridge, err := native.NewBridge(newCaptureABI(), base)
	if err != nil {
		return fmt.Errorf("failed to create native bridge: %w", err)
	}
	d.bridge = bridge
	if !native.Linked() {
		d.logger.Warn().Msg("Native capture engine not linked, record_start will fail")
	}

	d.events = recording.NewEventQueue(d.config.Recording.EventQueueCapacity, base)

	coordinator, err := recording.NewCoordinator(recording.Options{
		Engine:            bridge,
		Resolver:          recording.NewPathResolver(d.config.ProjectRoot),
		Queue:             d.events,
		DefaultSampleRate: d.config.Recording.DefaultSampleRate,
		DefaultChannels:   d.config.Recording.DefaultChannels,
		DefaultFileName:   d.config.Recording.DefaultFileName,
		Logger:            base,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	d.coordinator = coordinator

	server, err := gateway.NewServer(gateway.Config{
		Host:              d.config.Gateway.Host,
		Port:              d.config.Gateway.Port,
		SharedSecret:      d.config.Gateway.SharedSecret,
		RequestsPerMinute: d.config.Gateway.RequestsPerMinute,
		MaxConcurrent:     d.config.Gateway.MaxConcurrent,
		TickInterval:      30 * time.Second,
		Recorder:          coordinator,
		Logger:            base,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = server

	return nil
}

// WatchConfig reloads live settings when the config file at path changes.
// Only the log level and the gateway rate limits are applied live; other
// changes take effect on restart.
func (d *Daemon) WatchConfig(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		return fmt.Errorf("config watcher already started")
	}

	watcher := config.NewWatcher(config.NewLoader(path), d.logger.GetZerolog(), d.applyConfig)
	if err := watcher.Start(); err != nil {
		return err
	}
	d.watcher = watcher
	return nil
}

func (d *Daemon) applyConfig(cfg *config.Config) {
	level := d.logger.SetLevel(cfg.Logging.Level)
	d.gatewayServer.UpdateRateLimits(cfg.Gateway.RequestsPerMinute, cfg.Gateway.MaxConcurrent)

	d.mu.Lock()
	restartNeeded := cfg.Gateway.Port != d.config.Gateway.Port ||
		cfg.Gateway.Host != d.config.Gateway.Host ||
		cfg.Gateway.SharedSecret != d.config.Gateway.SharedSecret ||
		cfg.ProjectRoot != d.config.ProjectRoot
	d.config.Logging.Level = cfg.Logging.Level
	d.config.Gateway.RequestsPerMinute = cfg.Gateway.RequestsPerMinute
	d.config.Gateway.MaxConcurrent = cfg.Gateway.MaxConcurrent
	d.mu.Unlock()

	if restartNeeded {
		d.logger.Warn().Msg("Gateway or storage settings changed, restart to apply")
	}

	observability.RecordConfigAudit(d.ctx, "config_reload", "watcher", map[string]interface{}{
		"log_level":           level.String(),
		"requests_per_minute": cfg.Gateway.RequestsPerMinute,
		"max_concurrent":      cfg.Gateway.MaxConcurrent,
		"restart_needed":      restartNeeded,
	})
}

// Start starts the daemon
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting recbridge daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		_ = d.lifecycle.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	logger.Info().
		Str("addr", d.gatewayServer.Addr()).
		Str("project_root", d.config.ProjectRoot).
		Bool("native_linked", native.Linked()).
		Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the daemon. An open capture is ended so the native engine
// releases the output file.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	watcher := d.watcher
	d.watcher = nil
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping recbridge daemon")

	if watcher != nil {
		watcher.Stop()
	}

	if err := d.gatewayServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop gateway server")
	}

	d.closeOpenSession(logger)

	d.cancel()

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.shutdownTracing()

	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")
	return nil
}

func (d *Daemon) closeOpenSession(logger zerolog.Logger) {
	status, err := d.coordinator.Status()
	if err != nil {
		logger.Error().Err(err).Msg("Coordinator unavailable during shutdown")
		return
	}
	if status.State == recording.StateIdle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome, err := d.coordinator.Stop(ctx, recording.StopRequest{SessionID: status.SessionID})
	if err != nil {
		logger.Error().Err(err).Str("session_id", status.SessionID).Msg("Failed to stop open session")
		return
	}
	logger.Info().
		Str("session_id", outcome.SessionID).
		Float64("duration", outcome.Duration).
		Msg("Closed open session on shutdown")
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracingEnabled = false
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
		PID:     os.Getpid(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.gatewayServer.Addr()
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-d.ctx.Done():
		return
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetCoordinator returns the recording coordinator
func (d *Daemon) GetCoordinator() *recording.Coordinator {
	return d.coordinator
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}
