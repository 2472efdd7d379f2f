package recording

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueDrain(t *testing.T) {
	q := NewEventQueue(0, zerolog.Nop())

	assert.Empty(t, q.Drain())

	q.Push(StartedEvent("s1", SourceMic, "data/users/u/recordings/a.wav", 16000, 1))
	q.Push(DoneEvent("s1", "data/users/u/recordings/a.wav", 3.5))
	assert.Equal(t, 2, q.Len())

	events := q.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Kind)
	assert.Equal(t, EventDone, events[1].Kind)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.NotZero(t, events[0].Timestamp)

	assert.Empty(t, q.Drain())
	assert.Empty(t, q.Drain())
	assert.Zero(t, q.Len())
}

func TestEventQueueCapacityDropsNewest(t *testing.T) {
	q := NewEventQueue(2, zerolog.Nop())

	assert.True(t, q.Push(ErrorEvent("a", "one", "")))
	assert.True(t, q.Push(ErrorEvent("b", "two", "")))
	assert.False(t, q.Push(ErrorEvent("c", "three", "")))
	assert.Equal(t, int64(1), q.Dropped())

	events := q.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].SessionID)
	assert.Equal(t, "b", events[1].SessionID)

	assert.True(t, q.Push(ErrorEvent("d", "four", "")))
}

func TestEventQueueConcurrentPushDrain(t *testing.T) {
	q := NewEventQueue(0, zerolog.Nop())

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(ErrorEvent("s", "m", ""))
			}
		}()
	}

	seen := make(map[int64]bool)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collect := func() {
		for _, e := range q.Drain() {
			mu.Lock()
			assert.False(t, seen[e.Seq], "event %d delivered twice", e.Seq)
			seen[e.Seq] = true
			mu.Unlock()
		}
	}

	for {
		select {
		case <-done:
			collect()
			assert.Len(t, seen, producers*perProducer)
			return
		default:
			collect()
		}
	}
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(ErrorEvent("s1", "Missing userId for native recording", "a.wav"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "error", decoded["type"])
	assert.Equal(t, "s1", decoded["session_id"])
	assert.Equal(t, "a.wav", decoded["file_name"])
	assert.NotContains(t, decoded, "path")
	assert.NotContains(t, decoded, "duration")
}

func TestEventJSONDoneKeepsZeroDuration(t *testing.T) {
	data, err := json.Marshal(DoneEvent("s1", "data/users/u1/recordings/a.wav", 0))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration":0`)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventDone, decoded.Kind)
	assert.Equal(t, "data/users/u1/recordings/a.wav", decoded.Path)
	assert.Zero(t, decoded.Duration)

	data, err = json.Marshal(StartedEvent("s1", SourceMic, "a.wav", 44100, 1))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "duration")
}
