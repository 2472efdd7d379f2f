package recording

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/harun/recbridge/internal/observability"
	"github.com/rs/zerolog"
)

// EventKind discriminates queued outcome events.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventDone    EventKind = "done"
	EventError   EventKind = "error"
)

// Event is an asynchronous session outcome delivered through the queue.
type Event struct {
	Kind      EventKind `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Timestamp int64     `json:"timestamp"`

	// started
	Source     Source `json:"source,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	// started, done
	Path string `json:"path,omitempty"`

	// done, always encoded for that kind
	Duration float64 `json:"duration,omitempty"`

	// error
	Message  string `json:"message,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// MarshalJSON keeps duration on done events even when the capture was empty.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Kind != EventDone {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		Duration float64 `json:"duration"`
	}{plain: plain(e), Duration: e.Duration})
}

// StartedEvent reports that the native engine accepted a capture.
func StartedEvent(sessionID string, source Source, relPath string, sampleRate, channels int) Event {
	return Event{
		Kind:       EventStarted,
		SessionID:  sessionID,
		Source:     source,
		Path:       relPath,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// DoneEvent reports a finished capture.
func DoneEvent(sessionID, relPath string, duration float64) Event {
	return Event{
		Kind:      EventDone,
		SessionID: sessionID,
		Path:      relPath,
		Duration:  duration,
	}
}

// ErrorEvent reports a failure. fileName may be empty when unknown.
func ErrorEvent(sessionID, message, fileName string) Event {
	return Event{
		Kind:      EventError,
		SessionID: sessionID,
		Message:   message,
		FileName:  fileName,
	}
}

// EventQueue is a drain-on-read mailbox of outcome events. Push never blocks
// on consumers; when capacity is reached new events are dropped.
type EventQueue struct {
	mu       sync.Mutex
	events   []Event
	seq      int64
	capacity int
	dropped  int64
	logger   zerolog.Logger
}

// NewEventQueue creates a queue holding at most capacity undrained events.
// A capacity <= 0 means unbounded.
func NewEventQueue(capacity int, logger zerolog.Logger) *EventQueue {
	observability.EnsureRegistered()

	return &EventQueue{
		events:   make([]Event, 0),
		capacity: capacity,
		logger:   logger,
	}
}

// Push appends an event, stamping its sequence number and timestamp.
// It reports false when the event was dropped.
func (q *EventQueue) Push(event Event) bool {
	q.mu.Lock()
	if q.capacity > 0 && len(q.events) >= q.capacity {
		q.dropped++
		depth := len(q.events)
		q.mu.Unlock()

		q.logger.Warn().
			Str("type", string(event.Kind)).
			Str("session_id", event.SessionID).
			Int("depth", depth).
			Msg("Event queue full, dropping event")
		observability.RecordEventDropped(string(event.Kind))
		return false
	}

	q.seq++
	event.Seq = q.seq
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	q.events = append(q.events, event)
	depth := len(q.events)
	q.mu.Unlock()

	q.logger.Debug().
		Str("type", string(event.Kind)).
		Str("session_id", event.SessionID).
		Int64("seq", event.Seq).
		Msg("Event queued")
	observability.RecordEventQueued(string(event.Kind), depth)
	return true
}

// Drain removes and returns every queued event in FIFO order. It never
// blocks waiting for new events and returns an empty slice when idle.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	drained := q.events
	q.events = make([]Event, 0)
	q.mu.Unlock()

	observability.SetEventQueueDepth(0)
	return drained
}

// Len returns the number of undrained events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *EventQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
