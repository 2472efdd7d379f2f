package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/recbridge/internal/observability"
	"github.com/harun/recbridge/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "recbridge.recording"

// Default capture format used when a request leaves it out.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// CaptureEngine is the native capture contract driven by the coordinator.
// Implementations assume at most one capture is open; the coordinator
// guarantees that by holding its state lock across every call.
type CaptureEngine interface {
	BeginCapture(ctx context.Context, absPath string, sampleRate, channels int, source string) error
	EndCapture(ctx context.Context) (float64, error)
}

// State is the coordinator's session state.
type State string

const (
	StateIdle         State = "idle"
	StateActive       State = "active"
	StateActiveFailed State = "active_failed"
)

// Session is the single capture attempt owned by the coordinator.
type Session struct {
	ID             string
	Source         Source
	FileName       string
	UserID         string
	SampleRate     int
	Channels       int
	RelativePath   string
	AbsolutePath   string
	StartedAt      time.Time
	PendingFailure *Error
}

// StopOutcome describes how a stopped session ended. Failure is set when the
// capture failed, either at start or at stop.
type StopOutcome struct {
	SessionID string
	Path      string
	Duration  float64
	Failure   *Error
}

// Status is a point-in-time snapshot of the coordinator.
type Status struct {
	State          State      `json:"state"`
	SessionID      string     `json:"session_id,omitempty"`
	Source         Source     `json:"source,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	Path           string     `json:"path,omitempty"`
	SampleRate     int        `json:"sample_rate,omitempty"`
	Channels       int        `json:"channels,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	PendingFailure string     `json:"pending_failure,omitempty"`
	QueuedEvents   int        `json:"queued_events"`
}

// Options configures a Coordinator.
type Options struct {
	Engine            CaptureEngine
	Resolver          *PathResolver
	Queue             *EventQueue
	DefaultSampleRate int
	DefaultChannels   int
	DefaultFileName   string
	Logger            zerolog.Logger

	// NewSessionID generates ids for requests that carry none.
	NewSessionID func() string
}

// Coordinator owns the zero-or-one active session and serializes start and
// stop requests against the native engine.
type Coordinator struct {
	mu       sync.Mutex
	session  *Session
	poisoned bool

	engine            CaptureEngine
	resolver          *PathResolver
	queue             *EventQueue
	defaultSampleRate int
	defaultChannels   int
	defaultFileName   string
	newSessionID      func() string
	logger            zerolog.Logger
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("capture engine is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("path resolver is required")
	}

	observability.EnsureRegistered()

	logger := opts.Logger.With().Str("component", "recording-coordinator").Logger()

	queue := opts.Queue
	if queue == nil {
		queue = NewEventQueue(0, logger)
	}

	c := &Coordinator{
		engine:            opts.Engine,
		resolver:          opts.Resolver,
		queue:             queue,
		defaultSampleRate: opts.DefaultSampleRate,
		defaultChannels:   opts.DefaultChannels,
		defaultFileName:   SanitizeFileName(opts.DefaultFileName),
		newSessionID:      opts.NewSessionID,
		logger:            logger,
	}
	if c.defaultSampleRate <= 0 {
		c.defaultSampleRate = DefaultSampleRate
	}
	if c.defaultChannels <= 0 {
		c.defaultChannels = DefaultChannels
	}
	if c.newSessionID == nil {
		c.newSessionID = uuid.NewString
	}

	observability.SetActiveSession(false)
	return c, nil
}

// Events returns the coordinator's event queue.
func (c *Coordinator) Events() *EventQueue {
	return c.queue
}

// Poll drains every queued event.
func (c *Coordinator) Poll() []Event {
	return c.queue.Drain()
}

// Start handles a record_start request and returns the session id used for
// correlation, generated when the request has none. A non-nil error means
// the start failed; the outcome is also queued as an event. Failures after
// the exclusivity check leave the session installed with a pending failure
// that the next Stop reports.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.newSessionID()
	}

	ctx = tracing.WithSessionKey(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "recording.start",
		attribute.String("session_id", sessionID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, c.logger)

	err := c.withState(func() error {
		return c.startLocked(ctx, sessionID, req, logger)
	})
	if err != nil {
		tracing.FailSpan(span, err)
	}
	return sessionID, err
}

func (c *Coordinator) startLocked(ctx context.Context, sessionID string, req StartRequest, logger zerolog.Logger) error {
	if c.session != nil {
		logger.Warn().
			Str("active_session_id", c.session.ID).
			Msg("Rejected start, recording already in progress")
		c.queue.Push(ErrorEvent(sessionID, MsgAlreadyRecording, ""))
		observability.RecordStart("", "rejected")
		return newError(KindConflict, MsgAlreadyRecording, nil)
	}

	session := &Session{
		ID:         sessionID,
		Source:     NormalizeSource(req.Source),
		FileName:   sanitizeFileName(req.FileName, c.defaultFileName),
		UserID:     req.UserID,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		StartedAt:  time.Now(),
	}
	if session.SampleRate <= 0 {
		session.SampleRate = c.defaultSampleRate
	}
	if session.Channels <= 0 {
		session.Channels = c.defaultChannels
	}

	if err := ValidateUserID(req.UserID); err != nil {
		return c.failStart(session, asError(err, KindValidation, MsgInvalidUserID), logger)
	}

	session.RelativePath, session.AbsolutePath = c.resolver.Resolve(req.UserID, session.FileName)

	if err := c.resolver.EnsureParentDir(session.AbsolutePath); err != nil {
		return c.failStart(session, asError(err, KindResource, MsgCreateDirFailed), logger)
	}

	if err := c.engine.BeginCapture(ctx, session.AbsolutePath, session.SampleRate, session.Channels, string(session.Source)); err != nil {
		return c.failStart(session, newError(KindNative, err.Error(), nil), logger)
	}

	c.session = session
	c.queue.Push(StartedEvent(session.ID, session.Source, session.RelativePath, session.SampleRate, session.Channels))

	observability.RecordStart(string(session.Source), "started")
	observability.SetActiveSession(true)

	logger.Info().
		Str("source", string(session.Source)).
		Str("path", session.RelativePath).
		Int("sample_rate", session.SampleRate).
		Int("channels", session.Channels).
		Msg("Recording started")

	return nil
}

// failStart installs the session in the Active-Failed state so that the
// next stop both reports the failure and frees the slot.
func (c *Coordinator) failStart(session *Session, failure *Error, logger zerolog.Logger) error {
	session.PendingFailure = failure
	c.session = session
	c.queue.Push(ErrorEvent(session.ID, failure.Error(), session.FileName))

	observability.RecordStart(string(session.Source), "failed")
	observability.SetActiveSession(true)

	logger.Warn().
		Str("kind", string(failure.Kind)).
		Str("file_name", session.FileName).
		Str("error", failure.Error()).
		Msg("Recording start failed, failure deferred to stop")

	return failure
}

// Stop handles a record_stop request. A nil error means the stop succeeded at
// the protocol level; how the capture itself ended is in the outcome and in
// the queued event.
func (c *Coordinator) Stop(ctx context.Context, req StopRequest) (*StopOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if req.SessionID != "" {
		ctx = tracing.WithSessionKey(ctx, req.SessionID)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "recording.stop",
		attribute.String("session_id", req.SessionID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, c.logger)

	var outcome *StopOutcome
	err := c.withState(func() error {
		var err error
		outcome, err = c.stopLocked(ctx, req, logger)
		return err
	})
	if err != nil {
		tracing.FailSpan(span, err)
		return nil, err
	}
	if outcome.Failure != nil {
		tracing.FailSpan(span, outcome.Failure)
	}
	return outcome, nil
}

func (c *Coordinator) stopLocked(ctx context.Context, req StopRequest, logger zerolog.Logger) (*StopOutcome, error) {
	if c.session == nil {
		logger.Warn().Msg("Rejected stop, no active recording session")
		c.queue.Push(ErrorEvent(req.SessionID, MsgNoActiveSession, ""))
		observability.RecordStop("rejected")
		return nil, newError(KindProtocol, MsgNoActiveSession, nil)
	}

	if req.SessionID != "" && req.SessionID != c.session.ID {
		logger.Warn().
			Str("active_session_id", c.session.ID).
			Msg("Rejected stop, session id mismatch")
		c.queue.Push(ErrorEvent(req.SessionID, MsgSessionIDMismatch, ""))
		observability.RecordStop("rejected")
		return nil, newError(KindProtocol, MsgSessionIDMismatch, nil)
	}

	session := c.session
	c.session = nil
	observability.SetActiveSession(false)

	outcome := &StopOutcome{
		SessionID: session.ID,
		Path:      session.RelativePath,
	}

	if session.PendingFailure != nil {
		outcome.Failure = session.PendingFailure
		c.queue.Push(ErrorEvent(session.ID, session.PendingFailure.Error(), session.FileName))
		observability.RecordStop("failed")

		logger.Info().
			Str("session_id", session.ID).
			Str("error", session.PendingFailure.Error()).
			Msg("Reported deferred start failure")
		return outcome, nil
	}

	duration, err := c.engine.EndCapture(ctx)
	if err != nil {
		outcome.Failure = newError(KindNative, err.Error(), nil)
		c.queue.Push(ErrorEvent(session.ID, err.Error(), session.FileName))
		observability.RecordStop("failed")

		logger.Error().
			Err(err).
			Str("session_id", session.ID).
			Str("path", session.RelativePath).
			Msg("Native engine failed to stop recording")
		return outcome, nil
	}

	outcome.Duration = duration
	c.queue.Push(DoneEvent(session.ID, session.RelativePath, duration))
	observability.RecordStop("done")
	observability.RecordCaptureDuration(duration)

	logger.Info().
		Str("session_id", session.ID).
		Str("path", session.RelativePath).
		Float64("duration", duration).
		Msg("Recording finished")

	return outcome, nil
}

// Status returns a snapshot of the current state.
func (c *Coordinator) Status() (Status, error) {
	var status Status
	err := c.withState(func() error {
		status = Status{State: StateIdle}
		if s := c.session; s != nil {
			startedAt := s.StartedAt
			status = Status{
				State:      StateActive,
				SessionID:  s.ID,
				Source:     s.Source,
				FileName:   s.FileName,
				Path:       s.RelativePath,
				SampleRate: s.SampleRate,
				Channels:   s.Channels,
				StartedAt:  &startedAt,
			}
			if s.PendingFailure != nil {
				status.State = StateActiveFailed
				status.PendingFailure = s.PendingFailure.Error()
			}
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	status.QueuedEvents = c.queue.Len()
	return status, nil
}

// withState runs fn while holding the state lock. A panic inside fn poisons
// the coordinator: the slot can no longer be trusted, so this and every later
// call fail with an internal error.
func (c *Coordinator) withState(fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return newError(KindInternal, MsgCoordinatorPoisoned, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			c.poisoned = true
			err = newError(KindInternal, MsgCoordinatorPoisoned, fmt.Errorf("panic: %v", r))
			c.logger.Error().
				Interface("panic", r).
				Msg("Recording coordinator poisoned")
		}
	}()

	return fn()
}
