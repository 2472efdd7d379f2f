package recording

import (
	"errors"
	"fmt"
)

// ErrorKind classifies coordinator failures.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindResource   ErrorKind = "resource"
	KindNative     ErrorKind = "native"
	KindProtocol   ErrorKind = "protocol"
	KindInternal   ErrorKind = "internal"
)

// Messages reported to the control channel. Clients match on these strings.
const (
	MsgMissingUserID       = "Missing userId for native recording"
	MsgInvalidUserID       = "Invalid userId for native recording"
	MsgAlreadyRecording    = "Recording already in progress"
	MsgNoActiveSession     = "No active recording session"
	MsgSessionIDMismatch   = "Session id mismatch"
	MsgUnsupportedType     = "Unsupported message type"
	MsgUnsupportedAction   = "Unsupported action"
	MsgCoordinatorPoisoned = "recording coordinator is in an inconsistent state"
	MsgCreateDirFailed     = "Failed to create recordings directory"
)

// Error is the typed error returned by the coordinator and the control
// message parser.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &recording.Error{Kind: recording.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// asError returns the *Error carried by err, or wraps a foreign err under
// kind and message so it can still be reported to the control channel.
func asError(err error, kind ErrorKind, message string) *Error {
	var recErr *Error
	if errors.As(err, &recErr) {
		return recErr
	}
	return newError(kind, message, err)
}

// KindOf returns the kind of a coordinator error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var recErr *Error
	if errors.As(err, &recErr) {
		return recErr.Kind
	}
	return ""
}
