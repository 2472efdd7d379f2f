package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBroadcaster_Broadcast(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry(0, 0)
	registry.Admit(serverConn, "127.0.0.1:1", true)
	registry.Admit(serverConn, "127.0.0.1:2", false)

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())
	assert.Equal(t, 1, broadcaster.Broadcast("tick", map[string]interface{}{"status": "alive"}))
	assert.Equal(t, 1, broadcaster.Broadcast("server.shutdown", nil))

	var first, second EventMessage
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&first))
	require.NoError(t, clientConn.ReadJSON(&second))

	assert.Equal(t, "event", first.Type)
	assert.Equal(t, "tick", first.Event)
	assert.NotZero(t, first.Timestamp)
	assert.Equal(t, "server.shutdown", second.Event)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestEventBroadcaster_NoClients(t *testing.T) {
	broadcaster := NewEventBroadcaster(NewClientRegistry(0, 0), zerolog.Nop())
	assert.Zero(t, broadcaster.Broadcast("tick", nil))
}

func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server websocket connection")
	}

	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		srv.Close()
	}

	return serverConn, clientConn, cleanup
}
