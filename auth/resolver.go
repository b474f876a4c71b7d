// Package auth implements the auth resolver (C4): bearer extraction,
// token decoding, and entitlement verification against the facilitator,
// with a logical-to-HTTP-URL fallback.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/facilitator"
	"github.com/nevermined-io/payments-sub002/logicalurl"
	"github.com/nevermined-io/payments-sub002/reqctx"
	"github.com/nevermined-io/payments-sub002/token"
)

// Result is the AuthResult value from §3, handed to protected handlers.
type Result struct {
	Token             *token.Claims
	AccessToken       string
	AgentID           string
	PlanID            string
	SubscriberAddress string
	LogicalURL        string
	HTTPURL           string
	AgentRequest      *x402.StartAgentRequest
}

// Params configures one authenticate() call (§4.4).
type Params struct {
	Extra   Extra
	AgentID string
	Name    string
	Kind    x402.Kind
	Args    map[string]string
	// PlanID, when set, takes precedence over the token's own plan and
	// the agent's first plan (§4.4.3).
	PlanID string
}

// Resolver implements verifyWithFallback and its two entry points,
// authenticate and authenticateMeta.
type Resolver struct {
	Facilitator facilitator.Interface
	ServerName  string
}

// Authenticate implements authenticate(extra, options, agentId, serverName,
// name, kind, args) from §4.4.
func (r *Resolver) Authenticate(ctx context.Context, p Params) (*Result, error) {
	logicalURL := logicalurl.Build(p.Kind, r.ServerName, p.Name, p.Args)
	return r.verifyWithFallback(ctx, p.Extra, p.AgentID, p.PlanID, logicalURL)
}

// AuthenticateMeta implements authenticateMeta(extra, options, agentId,
// serverName, method) from §4.4: the same routine, addressed at a
// meta-level logical URL instead of a specific tool/resource/prompt.
func (r *Resolver) AuthenticateMeta(ctx context.Context, extra Extra, agentID, method, planID string) (*Result, error) {
	logicalURL := logicalurl.BuildMeta(r.ServerName, method)
	return r.verifyWithFallback(ctx, extra, agentID, planID, logicalURL)
}

// verifyWithFallback is the shared routine described in §4.4 steps 1-7.
func (r *Resolver) verifyWithFallback(ctx context.Context, extra Extra, agentID, planIDOption, logicalURL string) (*Result, error) {
	rc, _ := reqctx.FromContext(ctx)

	bearer, ok := ExtractBearer(extra, rc)
	if !ok {
		return nil, x402.NewPaymentRequiredError("missing bearer token", "missing")
	}

	httpURL, haveHTTPURL := HTTPURLFromContext(rc)

	claims, err := token.Decode(bearer)
	if err != nil {
		return nil, x402.NewPaymentRequiredError(err.Error(), "invalid")
	}

	planID := resolvePlanID(planIDOption, claims)
	if planID == "" {
		if plans, plansErr := r.Facilitator.ListAgentPlans(ctx, agentID); plansErr == nil && len(plans) > 0 {
			planID = plans[0].PlanID
		}
	}

	subscriberAddress := claims.SubscriberAddress()

	paymentRequired := facilitator.BuildPaymentRequired(planID, facilitator.BuildOptions{
		Endpoint: logicalURL,
		AgentID:  agentID,
		HTTPVerb: "POST",
	})

	verifyResult, verifyErr := r.Facilitator.VerifyPermissions(ctx, facilitator.VerifyRequest{
		PaymentRequired: paymentRequired,
		X402AccessToken: bearer,
	})

	if (verifyErr != nil || !verifyResult.IsValid) && haveHTTPURL {
		fallbackRequired := facilitator.BuildPaymentRequired(planID, facilitator.BuildOptions{
			Endpoint: httpURL,
			AgentID:  agentID,
			HTTPVerb: "POST",
		})
		verifyResult, verifyErr = r.Facilitator.VerifyPermissions(ctx, facilitator.VerifyRequest{
			PaymentRequired: fallbackRequired,
			X402AccessToken: bearer,
		})
	}

	if verifyErr != nil || verifyResult == nil || !verifyResult.IsValid {
		return nil, r.denialError(ctx, agentID, planID, verifyResult)
	}

	result := &Result{
		Token:             claims,
		AccessToken:       bearer,
		AgentID:           agentID,
		PlanID:            planID,
		SubscriberAddress: subscriberAddress,
		LogicalURL:        logicalURL,
		AgentRequest:      verifyResult.AgentRequest,
	}
	if haveHTTPURL {
		result.HTTPURL = httpURL
	}
	return result, nil
}

// denialError builds the total-failure PaymentRequired error from §4.4.6:
// a best-effort fetch of the agent's first three plans, enumerated into
// the message; any fetch failure is swallowed silently.
func (r *Resolver) denialError(ctx context.Context, agentID, planID string, verifyResult *x402.VerifyResult) error {
	message := "payment verification failed"
	if verifyResult != nil && verifyResult.InvalidReason != "" {
		message = verifyResult.InvalidReason
	}

	if plans, err := r.Facilitator.ListAgentPlans(ctx, agentID); err == nil && len(plans) > 0 {
		names := make([]string, 0, 3)
		for i, p := range plans {
			if i >= 3 {
				break
			}
			if p.Name != "" {
				names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.PlanID))
			} else {
				names = append(names, p.PlanID)
			}
		}
		if len(names) > 0 {
			message = fmt.Sprintf("%s; available plans: %s", message, strings.Join(names, ", "))
		}
	}

	return x402.NewPaymentRequiredError(message, "invalid")
}

func resolvePlanID(explicit string, claims *token.Claims) string {
	if explicit != "" {
		return explicit
	}
	if claims != nil && claims.AcceptedPlanID != "" {
		return claims.AcceptedPlanID
	}
	return ""
}
