package recording

import (
	"context"
	"encoding/json"
	"math"
	"strings"
)

// MessageTypeIPlug is the only control message type the bridge accepts.
const MessageTypeIPlug = "iplug"

// Action selects the coordinator operation for a control message.
type Action string

const (
	ActionStart Action = "record_start"
	ActionStop  Action = "record_stop"
)

// StartRequest is the typed form of a record_start message. Zero values mean
// "absent" and are replaced by coordinator defaults.
type StartRequest struct {
	SessionID  string
	FileName   string
	UserID     string
	Source     string
	SampleRate int
	Channels   int
}

// StopRequest is the typed form of a record_stop message.
type StopRequest struct {
	SessionID string
}

// ControlMessage is a parsed control message. Exactly one of Start or Stop
// is set, matching Action.
type ControlMessage struct {
	Type   string
	Action Action
	Start  *StartRequest
	Stop   *StopRequest
}

// Response is the synchronous reply to a control message.
type Response struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ParseControlMessage converts loosely typed params into a ControlMessage.
// The untyped map is not used past this point.
func ParseControlMessage(params map[string]interface{}) (*ControlMessage, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	msgType, _ := params["type"].(string)
	if msgType != MessageTypeIPlug {
		return nil, newError(KindProtocol, MsgUnsupportedType, nil)
	}

	action, _ := params["action"].(string)
	if Action(action) != ActionStart && Action(action) != ActionStop {
		return nil, newError(KindProtocol, MsgUnsupportedAction, nil)
	}

	if err := validateControlSchema(params); err != nil {
		return nil, newError(KindProtocol, "Invalid message", err)
	}

	msg := &ControlMessage{
		Type:   msgType,
		Action: Action(action),
	}

	switch msg.Action {
	case ActionStart:
		msg.Start = &StartRequest{
			SessionID:  stringParam(params, "sessionId"),
			FileName:   stringParam(params, "fileName"),
			UserID:     stringParam(params, "userId"),
			Source:     stringParam(params, "source"),
			SampleRate: intParam(params, "sampleRate"),
			Channels:   intParam(params, "channels"),
		}
	case ActionStop:
		msg.Stop = &StopRequest{
			SessionID: stringParam(params, "sessionId"),
		}
	}

	return msg, nil
}

// HandleMessage parses a control message and dispatches it to the
// coordinator. Protocol-level failures are reported in the Response; the
// returned error is only set for internal faults.
func (c *Coordinator) HandleMessage(ctx context.Context, params map[string]interface{}) (Response, error) {
	msg, err := ParseControlMessage(params)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Rejected control message")
		return Response{Success: false, Error: err.Error()}, nil
	}

	switch msg.Action {
	case ActionStart:
		sessionID, err := c.Start(ctx, *msg.Start)
		if err != nil {
			if KindOf(err) == KindInternal {
				return Response{}, err
			}
			return Response{Success: false, SessionID: sessionID, Error: err.Error()}, nil
		}
		return Response{Success: true, SessionID: sessionID}, nil

	default:
		if _, err := c.Stop(ctx, *msg.Stop); err != nil {
			if KindOf(err) == KindInternal {
				return Response{}, err
			}
			return Response{Success: false, Error: err.Error()}, nil
		}
		return Response{Success: true}, nil
	}
}

func stringParam(params map[string]interface{}, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

// intParam accepts the numeric representations produced by encoding/json and
// by Go callers. Non-integral or out-of-range values read as absent.
func intParam(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0
		}
		return int(v)
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0
		}
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return 0
		}
		return int(n)
	}
	return 0
}
