// Package facilitator implements the HTTP client for the four facilitator
// operations the paywall engine needs (C2): verify, settle, start, and
// redeem. It also owns the plan-metadata cache and the pure
// BuildPaymentRequired helper.
package facilitator

import (
	"context"

	"github.com/nevermined-io/payments-sub002"
)

// Interface is the facilitator contract consumed by auth, paywall, and the
// x402-HTTP binding. The HTTP implementation lives in Client; tests use a
// hand-written fake satisfying the same interface.
type Interface interface {
	VerifyPermissions(ctx context.Context, req VerifyRequest) (*x402.VerifyResult, error)
	SettlePermissions(ctx context.Context, req SettleRequest) (*x402.SettleResult, error)
	StartProcessingRequest(ctx context.Context, agentID, accessToken, urlRequested, httpVerb string, batch bool) (*x402.StartAgentRequest, error)
	RedeemCreditsFromRequest(ctx context.Context, agentRequestID, accessToken string, creditsToBurn int64, batch bool) (*RedeemResult, error)

	// PlanScheme returns the scheme associated with planID, consulting the
	// 5-minute plan-metadata cache (§4.2) before falling back to a fetch.
	PlanScheme(ctx context.Context, planID string) (string, error)

	// ListAgentPlans best-effort-fetches an agent's plans, used by the
	// auth resolver to enumerate choices in a denial message (§4.4.6).
	// The call is bounded by ctx (and, for Client, by its *http.Client);
	// callers treat any error as "no plans available" and swallow it.
	ListAgentPlans(ctx context.Context, agentID string) ([]PlanSummary, error)
}

// VerifyRequest is the body of a verifyPermissions call.
type VerifyRequest struct {
	PaymentRequired x402.PaymentRequired `json:"paymentRequired"`
	X402AccessToken string               `json:"x402AccessToken"`
	MaxAmount       string               `json:"maxAmount,omitempty"`
}

// SettleRequest is the body of a settlePermissions call.
type SettleRequest struct {
	PaymentRequired x402.PaymentRequired `json:"paymentRequired"`
	X402AccessToken string               `json:"x402AccessToken"`
	MaxAmount       string               `json:"maxAmount,omitempty"`
	AgentRequestID  string               `json:"agentRequestId,omitempty"`
	Batch           bool                 `json:"batch,omitempty"`
	MarginPercent   *float64             `json:"marginPercent,omitempty"`
}

// RedeemResult is the response of redeemCreditsFromRequest.
type RedeemResult struct {
	TxHash  string `json:"txHash"`
	Success bool   `json:"success"`
}

// PlanSummary is the minimal plan shape used in denial messages.
type PlanSummary struct {
	PlanID string `json:"planId"`
	Name   string `json:"name,omitempty"`
}
