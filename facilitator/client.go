package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/retry"
)

const retrySimulateDelay = 1 * time.Second

// AuthorizationProvider returns an Authorization header value to attach to
// every outbound facilitator request; useful for tokens that need to be
// refreshed on each call.
type AuthorizationProvider func(ctx context.Context) (string, error)

// Client is the HTTP implementation of Interface.
type Client struct {
	baseURL               string
	httpClient            *http.Client
	authorization         string
	authorizationProvider AuthorizationProvider
	logger                *slog.Logger

	cache *planCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAuthorization sets a static Authorization header value.
func WithAuthorization(value string) Option {
	return func(cl *Client) { cl.authorization = value }
}

// WithAuthorizationProvider sets a dynamic Authorization header provider.
// If set, it takes precedence over WithAuthorization.
func WithAuthorizationProvider(p AuthorizationProvider) Option {
	return func(cl *Client) { cl.authorizationProvider = p }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New builds a facilitator Client against baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		cache:      newPlanCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Interface = (*Client)(nil)

func (c *Client) authHeader(ctx context.Context) (string, error) {
	if c.authorizationProvider != nil {
		return c.authorizationProvider(ctx)
	}
	return c.authorization, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("facilitator: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return &x402.NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if auth, err := c.authHeader(ctx); err != nil {
		return fmt.Errorf("facilitator: authorization provider: %w", err)
	} else if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &x402.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &x402.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &x402.BackendError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("facilitator: decode response: %w", err)
	}
	return nil
}

// VerifyPermissions implements Interface.
func (c *Client) VerifyPermissions(ctx context.Context, req VerifyRequest) (*x402.VerifyResult, error) {
	var out x402.VerifyResult
	if err := c.post(ctx, "/api/v1/permissions/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SettlePermissions implements Interface.
func (c *Client) SettlePermissions(ctx context.Context, req SettleRequest) (*x402.SettleResult, error) {
	var out x402.SettleResult
	if err := c.post(ctx, "/api/v1/permissions/settle", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartProcessingRequest implements Interface.
func (c *Client) StartProcessingRequest(ctx context.Context, agentID, accessToken, urlRequested, httpVerb string, batch bool) (*x402.StartAgentRequest, error) {
	body := map[string]interface{}{
		"accessToken": accessToken,
		"endpoint":    urlRequested,
		"httpVerb":    httpVerb,
		"batch":       batch,
	}
	var out x402.StartAgentRequest
	path := "/api/v1/agents/" + agentID + "/initialize"
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RedeemCreditsFromRequest implements Interface.
func (c *Client) RedeemCreditsFromRequest(ctx context.Context, agentRequestID, accessToken string, creditsToBurn int64, batch bool) (*RedeemResult, error) {
	body := map[string]interface{}{
		"agentRequestId": agentRequestID,
		"accessToken":    accessToken,
		"amount":         strconv.FormatInt(creditsToBurn, 10),
		"batch":          batch,
	}
	var out RedeemResult
	if err := c.post(ctx, "/api/v1/agents/redeem", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// simulateRetry is the fixed-delay retry policy for
// finishSimulationRequest: 3 attempts, 1 second apart, no backoff growth
// (§4.2). Built from the shared retry package by pinning Multiplier to 1.
var simulateRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: retrySimulateDelay,
	MaxDelay:     retrySimulateDelay,
	Multiplier:   1.0,
}

// SimulateResult is the response of the simulate/redeem-simulate
// endpoints.
type SimulateResult struct {
	TxHash  string `json:"txHash"`
	Success bool   `json:"success"`
}

// FinishSimulationRequest calls .../requests/redeem-simulate, making up to
// 3 attempts in all on any failure, with a fixed 1 second delay between
// attempts.
func (c *Client) FinishSimulationRequest(ctx context.Context, agentRequestID, accessToken string, creditsToBurn int64, batch bool) (*SimulateResult, error) {
	body := map[string]interface{}{
		"agentRequestId": agentRequestID,
		"accessToken":    accessToken,
		"amount":         strconv.FormatInt(creditsToBurn, 10),
		"batch":          batch,
	}

	return retry.WithRetry(ctx, simulateRetry, alwaysRetryable, func() (*SimulateResult, error) {
		var out SimulateResult
		if err := c.post(ctx, "/api/v1/requests/redeem-simulate", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func alwaysRetryable(error) bool { return true }

// ListAgentPlans implements Interface. Any transport or decode failure is
// returned to the caller, which per §4.4.6 and §7 treats it as
// best-effort and swallows it.
func (c *Client) ListAgentPlans(ctx context.Context, agentID string) ([]PlanSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/agents/"+agentID+"/plans", nil)
	if err != nil {
		return nil, &x402.NetworkError{Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &x402.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &x402.BackendError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var out struct {
		Plans []PlanSummary `json:"plans"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("facilitator: decode plans response: %w", err)
	}
	return out.Plans, nil
}
