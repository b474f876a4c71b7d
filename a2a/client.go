// Package a2a implements the A2A client registry and streaming client
// (C11): one PaymentsClient per (agentBaseUrl, agentId, planId), talking
// JSON-RPC 2.0 over HTTP, with unary and SSE-streamed operations.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/agentcard"
)

// AccessTokenFunc fetches an x402 access token for one (planID, agentID)
// pair. PaymentsClient calls this at most once per instance, caching the
// result until ClearToken is called.
type AccessTokenFunc func(ctx context.Context, planID, agentID string) (string, error)

// StreamItem is one dispatched event from a streaming A2A operation: a
// successfully parsed JSON-RPC result, or a terminal error.
type StreamItem struct {
	Result json.RawMessage
	Err    error
}

// PaymentsClient talks JSON-RPC 2.0 to one A2A agent, attaching a cached
// x402 access token as a bearer credential to every call.
type PaymentsClient struct {
	httpClient *http.Client
	baseURL    string
	card       agentcard.AgentCard
	agentID    string
	planID     string
	tokenFn    AccessTokenFunc

	tokenMu     sync.Mutex
	token       string
	tokenCached bool
}

type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

func newPaymentsClient(httpClient *http.Client, baseURL string, card agentcard.AgentCard, agentID, planID string, tokenFn AccessTokenFunc) *PaymentsClient {
	return &PaymentsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		card:       card,
		agentID:    agentID,
		planID:     planID,
		tokenFn:    tokenFn,
	}
}

// ClearToken drops the cached access token; the next call re-fetches it.
func (c *PaymentsClient) ClearToken() {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.tokenCached = false
	c.token = ""
}

func (c *PaymentsClient) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.tokenCached {
		return c.token, nil
	}
	token, err := c.tokenFn(ctx, c.planID, c.agentID)
	if err != nil {
		return "", fmt.Errorf("a2a: fetching access token: %w", err)
	}
	c.token = token
	c.tokenCached = true
	return token, nil
}

// SendMessage is the unary "message/send" JSON-RPC call.
func (c *PaymentsClient) SendMessage(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.doUnary(ctx, "message/send", params)
}

// GetTask is the unary "tasks/get" JSON-RPC call.
func (c *PaymentsClient) GetTask(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.doUnary(ctx, "tasks/get", params)
}

// SetTaskPushNotificationConfig is the unary
// "tasks/pushNotificationConfig/set" JSON-RPC call.
func (c *PaymentsClient) SetTaskPushNotificationConfig(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.doUnary(ctx, "tasks/pushNotificationConfig/set", params)
}

// GetTaskPushNotificationConfig is the unary
// "tasks/pushNotificationConfig/get" JSON-RPC call.
func (c *PaymentsClient) GetTaskPushNotificationConfig(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.doUnary(ctx, "tasks/pushNotificationConfig/get", params)
}

// SendMessageStream is the streamed "message/stream" JSON-RPC call. It
// fails fast with an invalid-params RpcError (-32602) if the agent's card
// does not advertise capabilities.streaming.
func (c *PaymentsClient) SendMessageStream(ctx context.Context, params interface{}) (<-chan StreamItem, error) {
	return c.doStream(ctx, "message/stream", params)
}

// ResubscribeTask is the streamed "tasks/resubscribe" JSON-RPC call, same
// streaming-capability requirement as SendMessageStream.
func (c *PaymentsClient) ResubscribeTask(ctx context.Context, params interface{}) (<-chan StreamItem, error) {
	return c.doStream(ctx, "tasks/resubscribe", params)
}

func (c *PaymentsClient) doUnary(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	requestID := uuid.NewString()
	body, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: requestID, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("a2a: marshaling request: %w", err)
	}

	resp, err := c.post(ctx, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &x402.NetworkError{Err: fmt.Errorf("a2a: decoding response: %w", err)}
	}
	if rpcResp.ID != requestID {
		return nil, fmt.Errorf("%w: response id %q does not match request id %q", x402.ErrStreamProtocol, rpcResp.ID, requestID)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: agent returned error %d: %s", x402.ErrStreamProtocol, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func (c *PaymentsClient) doStream(ctx context.Context, method string, params interface{}) (<-chan StreamItem, error) {
	if !c.card.Capabilities.Streaming {
		return nil, x402.NewInvalidParamsError("agent does not advertise capabilities.streaming")
	}

	requestID := uuid.NewString()
	body, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: requestID, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("a2a: marshaling request: %w", err)
	}

	resp, err := c.post(ctx, body, "text/event-stream")
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: expected text/event-stream, got %q", x402.ErrStreamProtocol, contentType)
	}

	items := make(chan StreamItem)
	go func() {
		defer close(items)
		defer resp.Body.Close()

		err := readSSE(ctx, resp.Body, func(event sseEvent) bool {
			var rpcResp jsonrpcResponse
			if err := json.Unmarshal([]byte(event.data), &rpcResp); err != nil {
				items <- StreamItem{Err: fmt.Errorf("%w: malformed SSE payload: %v", x402.ErrStreamProtocol, err)}
				return false
			}
			if rpcResp.ID != requestID {
				items <- StreamItem{Err: fmt.Errorf("%w: event id %q does not match request id %q", x402.ErrStreamProtocol, rpcResp.ID, requestID)}
				return false
			}
			if rpcResp.Error != nil {
				items <- StreamItem{Err: fmt.Errorf("%w: agent returned error %d: %s", x402.ErrStreamProtocol, rpcResp.Error.Code, rpcResp.Error.Message)}
				return false
			}
			items <- StreamItem{Result: rpcResp.Result}
			return true
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			items <- StreamItem{Err: fmt.Errorf("a2a: reading event stream: %w", err)}
		}
	}()

	return items, nil
}

func (c *PaymentsClient) post(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2a: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &x402.NetworkError{Err: err}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &x402.BackendError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return resp, nil
}
