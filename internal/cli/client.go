package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harun/recbridge/internal/config"
	"github.com/harun/recbridge/pkg/gateway"
)

// rpcClient sends single-shot JSON-RPC requests to a running daemon.
type rpcClient struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	attempts   int
}

func newRPCClient(cfg *config.Config) *rpcClient {
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return &rpcClient{
		endpoint:   "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Gateway.Port)) + "/rpc",
		secret:     cfg.Gateway.SharedSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   2,
	}
}

// Call invokes method and decodes the result into out. A non-empty
// idempotencyKey lets transport failures be retried without repeating the
// operation on the daemon.
func (c *rpcClient) Call(ctx context.Context, method string, params map[string]interface{}, idempotencyKey string, out interface{}) error {
	req := gateway.RPCRequest{
		ID:             uuid.NewString(),
		Method:         method,
		Params:         params,
		JSONRPC:        "2.0",
		IdempotencyKey: idempotencyKey,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	attempts := 1
	if idempotencyKey != "" {
		attempts = c.attempts
	}

	var resp *gateway.RPCResponse
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = c.post(ctx, body)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return err
		}
	}
	if err != nil {
		return err
	}

	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to re-encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

func (c *rpcClient) post(ctx context.Context, body []byte) (*gateway.RPCResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set(gateway.SecretHeader, c.secret)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable at %s: %w", c.endpoint, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp gateway.RPCResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unexpected response (HTTP %d): %s", httpResp.StatusCode, bytes.TrimSpace(data))
	}
	return &resp, nil
}
