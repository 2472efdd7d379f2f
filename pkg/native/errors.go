package native

import "errors"

// UnknownErrorMessage replaces a missing or empty foreign error message.
const UnknownErrorMessage = "unknown native error"

// Operation names reported in errors, spans and metrics.
const (
	OpStart = "start"
	OpStop  = "stop"
)

// ErrNilABI is returned by NewBridge when no ABI is supplied.
var ErrNilABI = errors.New("native ABI is required")

// Error is a failure reported by the native engine. Message is the engine's
// text, passed through unchanged.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNative reports whether err came from the native engine.
func IsNative(err error) bool {
	var nerr *Error
	return errors.As(err, &nerr)
}
