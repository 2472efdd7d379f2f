package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/recbridge/pkg/recording"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{}

func (stubEngine) BeginCapture(context.Context, string, int, int, string) error { return nil }

func (stubEngine) EndCapture(context.Context) (float64, error) { return 1.5, nil }

func newTestServer(t *testing.T, secret string) (*Server, *httptest.Server) {
	t.Helper()

	coord, err := recording.NewCoordinator(recording.Options{
		Engine:   stubEngine{},
		Resolver: recording.NewPathResolver(t.TempDir()),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		SharedSecret: secret,
		Recorder:     coord,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postRPC(t *testing.T, ts *httptest.Server, secret string, req RPCRequest) (*http.Response, RPCResponse) {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	if secret != "" {
		httpReq.Header.Set(SecretHeader, secret)
	}
	httpReq.Header.Set(TraceIDHeader, "trace-test")

	httpResp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	var resp RPCResponse
	if httpResp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&resp))
	}
	return httpResp, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{Port: 8080})
	assert.ErrorIs(t, err, ErrRecorderRequired)

	_, err = NewServer(Config{Port: 70000, Recorder: &recording.Coordinator{}})
	assert.Error(t, err)
}

func TestServer_HTTPRecordingFlow(t *testing.T) {
	_, ts := newTestServer(t, "")

	httpResp, resp := postRPC(t, ts, "", RPCRequest{
		ID:     "1",
		Method: MethodControlMessage,
		Params: map[string]interface{}{
			"type":      "iplug",
			"action":    "record_start",
			"sessionId": "s1",
			"userId":    "u1",
			"fileName":  "a b.mp3",
			"source":    "plugin",
		},
	})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Equal(t, "trace-test", httpResp.Header.Get(TraceIDHeader))

	var start recording.Response
	decodeResult(t, resp, &start)
	assert.True(t, start.Success)
	assert.Equal(t, "s1", start.SessionID)

	_, resp = postRPC(t, ts, "", RPCRequest{ID: "2", Method: MethodRecordingStatus})
	var status recording.Status
	decodeResult(t, resp, &status)
	assert.Equal(t, recording.StateActive, status.State)

	_, resp = postRPC(t, ts, "", RPCRequest{
		ID:     "3",
		Method: MethodControlMessage,
		Params: map[string]interface{}{"type": "iplug", "action": "record_stop", "sessionId": "s1"},
	})
	var stop recording.Response
	decodeResult(t, resp, &stop)
	assert.True(t, stop.Success)

	_, resp = postRPC(t, ts, "", RPCRequest{ID: "4", Method: MethodEventsPoll})
	var events []recording.Event
	decodeResult(t, resp, &events)
	require.Len(t, events, 2)
	assert.Equal(t, recording.EventStarted, events[0].Kind)
	assert.Equal(t, "data/users/u1/recordings/a_b.mp3.wav", events[0].Path)
	assert.Equal(t, recording.EventDone, events[1].Kind)
	assert.Equal(t, 1.5, events[1].Duration)

	_, resp = postRPC(t, ts, "", RPCRequest{ID: "5", Method: MethodEventsPoll})
	decodeResult(t, resp, &events)
	assert.Empty(t, events)
}

func TestServer_ControlMessageProtocolErrors(t *testing.T) {
	_, ts := newTestServer(t, "")

	_, resp := postRPC(t, ts, "", RPCRequest{
		ID:     "1",
		Method: MethodControlMessage,
		Params: map[string]interface{}{"type": "midi"},
	})
	var result recording.Response
	decodeResult(t, resp, &result)
	assert.False(t, result.Success)
	assert.Equal(t, recording.MsgUnsupportedType, result.Error)

	_, resp = postRPC(t, ts, "", RPCRequest{
		ID:     "2",
		Method: MethodEventsPoll,
		Params: map[string]interface{}{"x": 1},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestServer_IdempotentStart(t *testing.T) {
	_, ts := newTestServer(t, "")

	req := RPCRequest{
		ID:             "1",
		Method:         MethodControlMessage,
		IdempotencyKey: "start-1",
		Params:         map[string]interface{}{"type": "iplug", "action": "record_start", "userId": "u1"},
	}
	_, first := postRPC(t, ts, "", req)
	req.ID = "2"
	_, second := postRPC(t, ts, "", req)

	var a, b recording.Response
	decodeResult(t, first, &a)
	decodeResult(t, second, &b)
	assert.True(t, a.Success)
	assert.Equal(t, a, b, "retried start must replay the first response")

	_, resp := postRPC(t, ts, "", RPCRequest{ID: "3", Method: MethodEventsPoll})
	var events []recording.Event
	decodeResult(t, resp, &events)
	assert.Len(t, events, 1)
}

func TestServer_SharedSecret(t *testing.T) {
	_, ts := newTestServer(t, "s3cret")

	httpResp, _ := postRPC(t, ts, "", RPCRequest{ID: "1", Method: MethodRecordingStatus})
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	httpResp, _ = postRPC(t, ts, "wrong", RPCRequest{ID: "1", Method: MethodRecordingStatus})
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	httpResp, resp := postRPC(t, ts, "s3cret", RPCRequest{ID: "1", Method: MethodRecordingStatus})
	assert.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Nil(t, resp.Error)

	res, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestServer_HTTPEndpoints(t *testing.T) {
	_, ts := newTestServer(t, "")

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(ts.URL + "/events")
	require.NoError(t, err)
	var events []recording.Event
	require.NoError(t, json.NewDecoder(res.Body).Decode(&events))
	res.Body.Close()
	assert.Empty(t, events)

	res, err = http.Get(ts.URL + "/rpc")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	res, err = http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(`{bad`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestServer_WebSocketWithAuth(t *testing.T) {
	srv, ts := newTestServer(t, "s3cret")
	conn := dialWS(t, ts)

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, "auth.challenge", challenge.Event)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id": "1", "method": MethodRecordingStatus,
	}))
	var denied RPCResponse
	require.NoError(t, conn.ReadJSON(&denied))
	require.NotNil(t, denied.Error)
	assert.Equal(t, AuthenticationRequired, denied.Error.Code)

	require.NoError(t, conn.WriteJSON(AuthResponse{
		Method:    "auth.response",
		Signature: Sign("s3cret", challenge.Challenge),
	}))
	var result AuthResult
	require.NoError(t, conn.ReadJSON(&result))
	assert.True(t, result.Success)

	require.NoError(t, conn.WriteJSON(RPCRequest{
		ID:     "2",
		Method: MethodControlMessage,
		Params: map[string]interface{}{"type": "iplug", "action": "record_start", "userId": "u1", "sessionId": "ws-1"},
	}))
	var resp RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "2", resp.ID)
	var start recording.Response
	decodeResult(t, resp, &start)
	assert.True(t, start.Success)
	assert.Equal(t, "ws-1", start.SessionID)

	require.Eventually(t, func() bool {
		return len(srv.GetConnectedClients()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServer_WebSocketWithoutSecret(t *testing.T) {
	_, ts := newTestServer(t, "")
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(RPCRequest{ID: "1", Method: MethodEventsPoll}))
	var resp RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Nil(t, resp.Error)
}

func TestServer_UpdateRateLimitsWhileClientsConnect(t *testing.T) {
	srv, ts := newTestServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	const dials = 20
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
				srv.UpdateRateLimits(50+i%10, 1+i%3)
			}
		}
	}()

	conns := make([]*websocket.Conn, 0, dials)
	var connsMu sync.Mutex
	var dialers sync.WaitGroup
	for i := 0; i < dials; i++ {
		dialers.Add(1)
		go func() {
			defer dialers.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if !assert.NoError(t, err) {
				return
			}
			connsMu.Lock()
			conns = append(conns, conn)
			connsMu.Unlock()
		}()
	}
	dialers.Wait()
	close(stop)
	wg.Wait()
	t.Cleanup(func() {
		for _, conn := range conns {
			conn.Close()
		}
	})

	srv.UpdateRateLimits(7, 3)
	require.Eventually(t, func() bool {
		return len(srv.GetConnectedClients()) == dials
	}, 2*time.Second, 10*time.Millisecond)

	for _, client := range srv.clients.All() {
		client.RateLimiter.mu.Lock()
		assert.Equal(t, 7, client.RateLimiter.requestsPerMinute)
		assert.Equal(t, 3, client.RateLimiter.maxConcurrent)
		client.RateLimiter.mu.Unlock()
	}
}

func TestServer_StartStop(t *testing.T) {
	coord, err := recording.NewCoordinator(recording.Options{
		Engine:   stubEngine{},
		Resolver: recording.NewPathResolver(t.TempDir()),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{Port: 0, Recorder: coord, Logger: zerolog.Nop(), TickInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	assert.NotEmpty(t, srv.Addr())

	res, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, srv.Stop())
}
