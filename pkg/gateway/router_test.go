package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCRouter_RegisterMethod(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should register method successfully", func(t *testing.T) {
		err := router.RegisterMethod("test.method", func(context.Context, map[string]interface{}) (interface{}, error) {
			return "result", nil
		})
		assert.NoError(t, err)
		assert.True(t, router.HasMethod("test.method"))
	})

	t.Run("should reject nil handler", func(t *testing.T) {
		err := router.RegisterMethod("test.nil", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "handler cannot be nil")
	})

	t.Run("should unregister method", func(t *testing.T) {
		router.UnregisterMethod("test.method")
		assert.False(t, router.HasMethod("test.method"))
		router.UnregisterMethod("non.existent")
	})
}

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should parse valid request", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"id":"1","method":"control.message","params":{"type":"iplug"},"idempotencyKey":"k1"}`))
		require.NoError(t, err)
		assert.Equal(t, "1", req.ID)
		assert.Equal(t, "control.message", req.Method)
		assert.Equal(t, "iplug", req.Params["type"])
		assert.Equal(t, "k1", req.IdempotencyKey)
		assert.Equal(t, "2.0", req.JSONRPC)
	})

	tests := []struct {
		name    string
		data    string
		code    int
		message string
	}{
		{"malformed JSON", `{invalid json}`, ParseError, "Parse error"},
		{"missing id", `{"method":"test.method"}`, InvalidRequest, "missing id"},
		{"missing method", `{"id":"1"}`, InvalidRequest, "missing method"},
	}
	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := router.ParseRequest([]byte(tt.data))
			require.Error(t, err)

			rpcErr, ok := err.(*RPCError)
			require.True(t, ok)
			assert.Equal(t, tt.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.message)
		})
	}
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter()
	ctx := context.Background()

	require.NoError(t, router.RegisterMethod("test.echo", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"echo": params["input"]}, nil
	}))
	require.NoError(t, router.RegisterMethod("test.error", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("handler error")
	}))
	require.NoError(t, router.RegisterMethod("test.rpcerror", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, &RPCError{Code: InvalidParams, Message: "bad params"}
	}))

	t.Run("should route to registered handler", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.echo", Params: map[string]interface{}{"input": "hello"}})
		assert.Equal(t, "1", resp.ID)
		assert.Nil(t, resp.Error)
		assert.Equal(t, "hello", resp.Result.(map[string]interface{})["echo"])
	})

	t.Run("should return error for unknown method", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "unknown.method"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, MethodNotFound, resp.Error.Code)
	})

	t.Run("should map plain errors to internal error", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.error"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InternalError, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "handler error")
	})

	t.Run("should keep RPC error codes", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.rpcerror"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("should reject nil request", func(t *testing.T) {
		resp := router.RouteRequest(ctx, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidRequest, resp.Error.Code)
	})
}

func TestRPCRouter_Idempotency(t *testing.T) {
	router := NewRPCRouter()
	ctx := context.Background()

	calls := 0
	handler := func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}
	require.NoError(t, router.RegisterMethod("test.count", handler))
	require.NoError(t, router.RegisterMethod("test.drain", handler))
	router.DisableIdempotency("test.drain")

	first := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.count", IdempotencyKey: "k"})
	second := router.RouteRequest(ctx, &RPCRequest{ID: "2", Method: "test.count", IdempotencyKey: "k"})
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "2", second.ID)

	router.RouteRequest(ctx, &RPCRequest{ID: "3", Method: "test.count"})
	assert.Equal(t, 2, calls, "requests without a key are never cached")

	router.RouteRequest(ctx, &RPCRequest{ID: "4", Method: "test.drain", IdempotencyKey: "k"})
	router.RouteRequest(ctx, &RPCRequest{ID: "5", Method: "test.drain", IdempotencyKey: "k"})
	assert.Equal(t, 4, calls, "uncached methods always run")

	router.idempotencyTTL = time.Millisecond
	router.RouteRequest(ctx, &RPCRequest{ID: "6", Method: "test.count", IdempotencyKey: "fresh"})
	time.Sleep(5 * time.Millisecond)
	router.RouteRequest(ctx, &RPCRequest{ID: "7", Method: "test.count", IdempotencyKey: "fresh"})
	assert.Equal(t, 6, calls, "expired entries are recomputed")
}

func TestRPCRouter_GetMethods(t *testing.T) {
	router := NewRPCRouter()
	assert.Empty(t, router.GetMethods())

	handler := func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil }
	_ = router.RegisterMethod("method1", handler)
	_ = router.RegisterMethod("method2", handler)

	assert.ElementsMatch(t, []string{"method1", "method2"}, router.GetMethods())
}
