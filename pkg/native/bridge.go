package native

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/recbridge/internal/observability"
	"github.com/harun/recbridge/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "recbridge.native"

// Bridge adapts an ABI to the coordinator's capture contract. It owns every
// error handle the ABI returns and serializes calls into the engine.
type Bridge struct {
	mu     sync.Mutex
	abi    ABI
	logger zerolog.Logger
}

// NewBridge creates a bridge over abi.
func NewBridge(abi ABI, logger zerolog.Logger) (*Bridge, error) {
	if abi == nil {
		return nil, ErrNilABI
	}
	return &Bridge{
		abi:    abi,
		logger: logger.With().Str("component", "native-bridge").Logger(),
	}, nil
}

// BeginCapture asks the engine to open absPath and start writing frames.
func (b *Bridge) BeginCapture(ctx context.Context, absPath string, sampleRate, channels int, source string) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "native.begin_capture",
		attribute.String("path", absPath),
		attribute.Int("sample_rate", sampleRate),
		attribute.Int("channels", channels),
		attribute.String("source", source),
	)
	defer span.End()

	_, err := b.call(ctx, OpStart, func() (bool, ErrorHandle, float64) {
		ok, handle := b.abi.Start(absPath, sampleRate, channels, source)
		return ok, handle, 0
	})
	if err != nil {
		tracing.FailSpan(span, err)
	}
	return err
}

// EndCapture asks the engine to stop, flush and close the current file and
// returns the captured duration in seconds.
func (b *Bridge) EndCapture(ctx context.Context) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "native.end_capture")
	defer span.End()

	duration, err := b.call(ctx, OpStop, b.abi.Stop)
	if err != nil {
		tracing.FailSpan(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Float64("duration_seconds", duration))
	return duration, nil
}

func (b *Bridge) call(ctx context.Context, op string, fn func() (bool, ErrorHandle, float64)) (duration float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger := tracing.LoggerFromContext(ctx, b.logger)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &Error{Op: op, Message: fmt.Sprintf("native %s panicked: %v", op, r)}
			duration = 0
			logger.Error().Interface("panic", r).Str("op", op).Msg("Native call panicked")
		}
		observability.RecordNativeCall(op, time.Since(started), err == nil)
	}()

	ok, handle, duration := fn()
	msg := takeMessage(handle)
	if ok {
		if msg != "" {
			logger.Debug().Str("op", op).Str("message", msg).Msg("Native call succeeded with message")
		}
		return duration, nil
	}

	if msg == "" {
		msg = UnknownErrorMessage
	}
	logger.Warn().Str("op", op).Str("error", msg).Msg("Native call failed")
	return 0, &Error{Op: op, Message: msg}
}

// takeMessage copies the handle's message into Go memory and releases the
// handle. The handle must not be used afterwards.
func takeMessage(handle ErrorHandle) string {
	if handle == nil {
		return ""
	}
	defer handle.Release()
	return handle.Message()
}
