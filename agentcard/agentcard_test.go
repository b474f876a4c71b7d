package agentcard

import (
	"errors"
	"testing"

	"github.com/nevermined-io/payments-sub002"
)

func TestBuildPaymentAgentCardFixedPlan(t *testing.T) {
	base := AgentCard{Name: "reports-agent", URL: "https://agents.example/reports"}

	card, err := BuildPaymentAgentCard(base, PaymentMetadata{
		PaymentType: "fixed",
		AgentID:     "agent-1",
		PlanID:      "plan-1",
		Credits:     5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(card.Capabilities.Extensions) != 1 {
		t.Fatalf("expected one extension, got %d", len(card.Capabilities.Extensions))
	}
	ext := card.Capabilities.Extensions[0]
	if ext.URI != paymentExtensionURI {
		t.Errorf("unexpected extension uri %q", ext.URI)
	}
	if ext.Params["credits"] != int64(5) {
		t.Errorf("expected credits 5, got %v", ext.Params["credits"])
	}
}

func TestBuildPaymentAgentCardTrialPlanAllowsZeroCredits(t *testing.T) {
	base := AgentCard{Name: "trial-agent"}

	card, err := BuildPaymentAgentCard(base, PaymentMetadata{
		PaymentType: "dynamic",
		AgentID:     "agent-2",
		IsTrialPlan: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.Capabilities.Extensions[0].Params["isTrialPlan"] != true {
		t.Errorf("expected isTrialPlan true in params")
	}
}

func TestBuildPaymentAgentCardRejectsZeroCreditsWithoutTrial(t *testing.T) {
	_, err := BuildPaymentAgentCard(AgentCard{}, PaymentMetadata{
		PaymentType: "fixed",
		AgentID:     "agent-3",
		Credits:     0,
	})
	assertInvalidParams(t, err)
}

func TestBuildPaymentAgentCardRejectsUnknownPaymentType(t *testing.T) {
	_, err := BuildPaymentAgentCard(AgentCard{}, PaymentMetadata{
		PaymentType: "subscription",
		AgentID:     "agent-4",
		Credits:     1,
	})
	assertInvalidParams(t, err)
}

func TestBuildPaymentAgentCardRejectsMissingAgentID(t *testing.T) {
	_, err := BuildPaymentAgentCard(AgentCard{}, PaymentMetadata{
		PaymentType: "fixed",
		Credits:     1,
	})
	assertInvalidParams(t, err)
}

func TestBuildPaymentAgentCardPreservesExistingExtensions(t *testing.T) {
	base := AgentCard{Capabilities: Capabilities{Extensions: []Extension{{URI: "urn:other:ext"}}}}

	card, err := BuildPaymentAgentCard(base, PaymentMetadata{
		PaymentType: "fixed",
		AgentID:     "agent-5",
		Credits:     1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(card.Capabilities.Extensions) != 2 {
		t.Fatalf("expected existing extension to be preserved, got %d", len(card.Capabilities.Extensions))
	}
}

func assertInvalidParams(t *testing.T, err error) {
	t.Helper()
	var rpcErr *x402.RpcError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *x402.RpcError, got %T (%v)", err, err)
	}
	if rpcErr.Code != x402.CodeInvalidParams {
		t.Errorf("expected CodeInvalidParams, got %d", rpcErr.Code)
	}
}
