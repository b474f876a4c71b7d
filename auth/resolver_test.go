package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/facilitator"
	"github.com/nevermined-io/payments-sub002/reqctx"
)

type fakeFacilitator struct {
	verify      func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error)
	listPlans   func(ctx context.Context, agentID string) ([]facilitator.PlanSummary, error)
	verifyCalls []facilitator.VerifyRequest
}

func (f *fakeFacilitator) VerifyPermissions(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
	f.verifyCalls = append(f.verifyCalls, req)
	return f.verify(ctx, req)
}

func (f *fakeFacilitator) SettlePermissions(ctx context.Context, req facilitator.SettleRequest) (*x402.SettleResult, error) {
	return &x402.SettleResult{Success: true}, nil
}

func (f *fakeFacilitator) StartProcessingRequest(ctx context.Context, agentID, accessToken, urlRequested, httpVerb string, batch bool) (*x402.StartAgentRequest, error) {
	return &x402.StartAgentRequest{AgentRequestID: "r1"}, nil
}

func (f *fakeFacilitator) RedeemCreditsFromRequest(ctx context.Context, agentRequestID, accessToken string, creditsToBurn int64, batch bool) (*facilitator.RedeemResult, error) {
	return &facilitator.RedeemResult{Success: true}, nil
}

func (f *fakeFacilitator) PlanScheme(ctx context.Context, planID string) (string, error) {
	return "nvm:erc4337", nil
}

func (f *fakeFacilitator) ListAgentPlans(ctx context.Context, agentID string) ([]facilitator.PlanSummary, error) {
	if f.listPlans != nil {
		return f.listPlans(ctx, agentID)
	}
	return nil, nil
}

func makeTestToken(planID, subscriber string) string {
	header := map[string]string{"alg": "none", "typ": "JWT"}
	claims := map[string]interface{}{
		"acceptedPlanId": planID,
		"payload": map[string]interface{}{
			"authorization": map[string]string{"from": subscriber},
		},
	}
	h, _ := json.Marshal(header)
	c, _ := json.Marshal(claims)
	enc := func(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
	return enc(h) + "." + enc(c) + "." + enc([]byte("sig"))
}

func contextWithAuth(bearer string) context.Context {
	rc := &reqctx.RequestContext{Headers: map[string]string{"authorization": "Bearer " + bearer}}
	return reqctx.WithContext(context.Background(), rc)
}

func TestAuthenticateMissingBearerIsPaymentRequired(t *testing.T) {
	r := &Resolver{Facilitator: &fakeFacilitator{}, ServerName: "srv"}
	_, err := r.Authenticate(context.Background(), Params{AgentID: "agent1", Name: "echo", Kind: x402.KindTool})
	if !x402.IsPaymentRequired(err) {
		t.Fatalf("expected PaymentRequired error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected message to mention missing bearer, got %q", err.Error())
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	tok := makeTestToken("plan1", "0xsub")
	fac := &fakeFacilitator{
		verify: func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
			return &x402.VerifyResult{IsValid: true, AgentRequestID: "r1"}, nil
		},
	}
	r := &Resolver{Facilitator: fac, ServerName: "srv"}
	ctx := contextWithAuth(tok)
	result, err := r.Authenticate(ctx, Params{AgentID: "agent1", Name: "echo", Kind: x402.KindTool})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PlanID != "plan1" || result.SubscriberAddress != "0xsub" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.LogicalURL != "mcp://srv/tools/echo" {
		t.Errorf("unexpected logical url: %q", result.LogicalURL)
	}
	if len(fac.verifyCalls) != 1 {
		t.Errorf("expected exactly one verify call, got %d", len(fac.verifyCalls))
	}
}

func TestAuthenticateFallsBackToHTTPURL(t *testing.T) {
	tok := makeTestToken("plan1", "0xsub")
	calls := 0
	fac := &fakeFacilitator{
		verify: func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
			calls++
			if calls == 1 {
				return &x402.VerifyResult{IsValid: false, InvalidReason: "no match on logical url"}, nil
			}
			if req.PaymentRequired.Resource.URL != "http://example.com/tools/echo" {
				t.Errorf("expected fallback to use http url, got %q", req.PaymentRequired.Resource.URL)
			}
			return &x402.VerifyResult{IsValid: true}, nil
		},
	}
	r := &Resolver{Facilitator: fac, ServerName: "srv"}
	rc := &reqctx.RequestContext{
		Headers: map[string]string{"authorization": "Bearer " + tok, "host": "example.com"},
		URL:     "/tools/echo",
	}
	ctx := reqctx.WithContext(context.Background(), rc)

	result, err := r.Authenticate(ctx, Params{AgentID: "agent1", Name: "echo", Kind: x402.KindTool})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected two verify attempts, got %d", calls)
	}
	if result.HTTPURL != "http://example.com/tools/echo" {
		t.Errorf("unexpected http url on result: %q", result.HTTPURL)
	}
}

func TestAuthenticateTotalFailureEnumeratesPlans(t *testing.T) {
	tok := makeTestToken("plan1", "0xsub")
	fac := &fakeFacilitator{
		verify: func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
			return &x402.VerifyResult{IsValid: false, InvalidReason: "insufficient credits"}, nil
		},
		listPlans: func(ctx context.Context, agentID string) ([]facilitator.PlanSummary, error) {
			return []facilitator.PlanSummary{
				{PlanID: "p1", Name: "Starter"},
				{PlanID: "p2", Name: "Pro"},
				{PlanID: "p3", Name: "Enterprise"},
				{PlanID: "p4", Name: "Ignored"},
			}, nil
		},
	}
	r := &Resolver{Facilitator: fac, ServerName: "srv"}
	ctx := contextWithAuth(tok)

	_, err := r.Authenticate(ctx, Params{AgentID: "agent1", Name: "echo", Kind: x402.KindTool})
	if !x402.IsPaymentRequired(err) {
		t.Fatalf("expected PaymentRequired error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "Starter") || !strings.Contains(msg, "Pro") || !strings.Contains(msg, "Enterprise") {
		t.Errorf("expected message to enumerate first three plans, got %q", msg)
	}
	if strings.Contains(msg, "Ignored") {
		t.Errorf("expected only first three plans to be enumerated, got %q", msg)
	}
}

func TestAuthenticateMetaUsesMetaLogicalURL(t *testing.T) {
	tok := makeTestToken("plan1", "0xsub")
	fac := &fakeFacilitator{
		verify: func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
			if req.PaymentRequired.Resource.URL != "mcp://srv/meta/tools/list" {
				t.Errorf("unexpected meta logical url: %q", req.PaymentRequired.Resource.URL)
			}
			return &x402.VerifyResult{IsValid: true}, nil
		},
	}
	r := &Resolver{Facilitator: fac, ServerName: "srv"}
	ctx := contextWithAuth(tok)

	_, err := r.AuthenticateMeta(ctx, Extra{}, "agent1", "tools/list", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthenticateResolvesMissingPlanFromAgentPlans(t *testing.T) {
	tok := makeTestToken("", "0xsub")
	fac := &fakeFacilitator{
		verify: func(ctx context.Context, req facilitator.VerifyRequest) (*x402.VerifyResult, error) {
			if req.PaymentRequired.Accepts[0].PlanID != "p1" {
				t.Errorf("expected plan resolved from agent plans, got %q", req.PaymentRequired.Accepts[0].PlanID)
			}
			return &x402.VerifyResult{IsValid: true}, nil
		},
		listPlans: func(ctx context.Context, agentID string) ([]facilitator.PlanSummary, error) {
			return []facilitator.PlanSummary{{PlanID: "p1", Name: "Starter"}}, nil
		},
	}
	r := &Resolver{Facilitator: fac, ServerName: "srv"}
	ctx := contextWithAuth(tok)

	result, err := r.Authenticate(ctx, Params{AgentID: "agent1", Name: "echo", Kind: x402.KindTool})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PlanID != "p1" {
		t.Errorf("expected resolved plan p1, got %q", result.PlanID)
	}
}
