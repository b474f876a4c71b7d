package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/agentcard"
)

const defaultAgentCardPath = ".well-known/agent.json"

// ClientKey identifies one cached PaymentsClient.
type ClientKey struct {
	AgentBaseURL string
	AgentID      string
	PlanID       string
}

func (k ClientKey) cacheKey() string {
	return k.AgentBaseURL + "|" + k.AgentID + "|" + k.PlanID
}

// ClientRegistry caches one PaymentsClient per (agentBaseUrl, agentId,
// planId) tuple. Concurrent first-requests for the same tuple are
// collapsed with singleflight so exactly one AgentCard fetch happens and
// every caller receives the same *PaymentsClient pointer, mirroring the
// facilitator package's plan-metadata cache (§4.2, §4.10).
type ClientRegistry struct {
	httpClient *http.Client
	tokenFn    AccessTokenFunc

	mu      sync.RWMutex
	clients map[string]*PaymentsClient
	group   singleflight.Group
}

// NewClientRegistry builds a registry. tokenFn is wired into every
// PaymentsClient the registry constructs.
func NewClientRegistry(httpClient *http.Client, tokenFn AccessTokenFunc) *ClientRegistry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ClientRegistry{
		httpClient: httpClient,
		tokenFn:    tokenFn,
		clients:    make(map[string]*PaymentsClient),
	}
}

// GetClient returns the cached PaymentsClient for key, fetching the
// AgentCard and constructing one if this is the first request for this
// tuple. agentCardPath defaults to ".well-known/agent.json" when empty.
func (r *ClientRegistry) GetClient(ctx context.Context, key ClientKey, agentCardPath string) (*PaymentsClient, error) {
	if key.AgentBaseURL == "" || key.AgentID == "" || key.PlanID == "" {
		return nil, x402.NewInvalidParamsError("agentBaseUrl, agentId, and planId are all required")
	}
	if agentCardPath == "" {
		agentCardPath = defaultAgentCardPath
	}

	r.mu.RLock()
	client, ok := r.clients[key.cacheKey()]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := r.group.Do(key.cacheKey(), func() (interface{}, error) {
		r.mu.RLock()
		if existing, ok := r.clients[key.cacheKey()]; ok {
			r.mu.RUnlock()
			return existing, nil
		}
		r.mu.RUnlock()

		card, err := fetchAgentCard(ctx, r.httpClient, key.AgentBaseURL, agentCardPath)
		if err != nil {
			return nil, err
		}

		newClient := newPaymentsClient(r.httpClient, key.AgentBaseURL, card, key.AgentID, key.PlanID, r.tokenFn)

		r.mu.Lock()
		r.clients[key.cacheKey()] = newClient
		r.mu.Unlock()

		return newClient, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PaymentsClient), nil
}

func fetchAgentCard(ctx context.Context, httpClient *http.Client, base, path string) (agentcard.AgentCard, error) {
	url := base
	if len(url) == 0 || url[len(url)-1] != '/' {
		url += "/"
	}
	url += path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return agentcard.AgentCard{}, fmt.Errorf("a2a: building agent card request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return agentcard.AgentCard{}, &x402.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return agentcard.AgentCard{}, &x402.BackendError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var card agentcard.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return agentcard.AgentCard{}, fmt.Errorf("a2a: decoding agent card: %w", err)
	}
	return card, nil
}
