package gateway

import (
	"context"
	"fmt"

	"github.com/harun/recbridge/internal/tracing"
	"github.com/harun/recbridge/pkg/recording"
)

// RPC method names served by the gateway.
const (
	MethodControlMessage  = "control.message"
	MethodEventsPoll      = "events.poll"
	MethodRecordingStatus = "recording.status"
)

// Recorder is the recording surface the gateway exposes.
type Recorder interface {
	HandleMessage(ctx context.Context, params map[string]interface{}) (recording.Response, error)
	Poll() []recording.Event
	Status() (recording.Status, error)
}

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod(MethodControlMessage, s.handleControlMessage)
	_ = s.RegisterMethod(MethodEventsPoll, s.handleEventsPoll)
	s.router.DisableIdempotency(MethodEventsPoll)
	_ = s.RegisterMethod(MethodRecordingStatus, s.handleRecordingStatus)
}

// handleControlMessage forwards an iplug control message to the coordinator.
// Protocol failures are part of the result; only internal faults become RPC
// errors.
func (s *Server) handleControlMessage(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	logger := tracing.LoggerFromContext(ctx, s.logger)

	resp, err := s.recorder.HandleMessage(ctx, params)
	if err != nil {
		logger.Error().Err(err).Msg("Control message failed")
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}

	logger.Debug().
		Interface("action", params["action"]).
		Bool("success", resp.Success).
		Str("session_id", resp.SessionID).
		Msg("Control message handled")
	return resp, nil
}

func (s *Server) handleEventsPoll(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if len(params) > 0 {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("%s takes no params", MethodEventsPoll)}
	}
	return s.recorder.Poll(), nil
}

func (s *Server) handleRecordingStatus(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	status, err := s.recorder.Status()
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return status, nil
}
