// Package agentcard builds and validates the AgentCard descriptor (C12):
// the JSON document an agent publishes at /.well-known/agent.json
// advertising its name, URL, capabilities, and payment terms.
package agentcard

import (
	"github.com/nevermined-io/payments-sub002"
)

// Capabilities is the subset of an AgentCard's capability flags this
// library reads: whether the agent supports SSE streaming responses.
type Capabilities struct {
	Streaming  bool        `json:"streaming,omitempty"`
	Extensions []Extension `json:"extensions,omitempty"`
}

// Extension is one entry of capabilities.extensions.
type Extension struct {
	URI    string                 `json:"uri"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// AgentCard is the advertised capability descriptor fetched from
// <agentBaseUrl>/<agentCardPath> by the A2A client registry (C11).
type AgentCard struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	URL          string       `json:"url"`
	Version      string       `json:"version,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// PaymentMetadata describes one agent's Nevermined payment terms, as
// given to BuildPaymentAgentCard.
type PaymentMetadata struct {
	// PaymentType is "fixed" or "dynamic".
	PaymentType     string
	AgentID         string
	PlanID          string
	Credits         int64
	IsTrialPlan     bool
	CostDescription string
}

const paymentExtensionURI = "urn:nevermined:payment"

// BuildPaymentAgentCard validates paymentMetadata and returns a copy of
// base with a urn:nevermined:payment extension appended to
// capabilities.extensions.
//
// Validation rules:
//   - paymentType must be "fixed" or "dynamic".
//   - agentId is required.
//   - credits must be > 0, except for trial plans (isTrialPlan=true),
//     which may have credits == 0.
func BuildPaymentAgentCard(base AgentCard, paymentMetadata PaymentMetadata) (AgentCard, error) {
	if paymentMetadata.PaymentType != "fixed" && paymentMetadata.PaymentType != "dynamic" {
		return AgentCard{}, x402.NewInvalidParamsError("paymentType must be \"fixed\" or \"dynamic\"")
	}
	if paymentMetadata.AgentID == "" {
		return AgentCard{}, x402.NewInvalidParamsError("agentId is required")
	}
	if paymentMetadata.Credits <= 0 && !paymentMetadata.IsTrialPlan {
		return AgentCard{}, x402.NewInvalidParamsError("credits must be greater than 0 unless isTrialPlan is true")
	}

	params := map[string]interface{}{
		"paymentType": paymentMetadata.PaymentType,
		"credits":     paymentMetadata.Credits,
		"agentId":     paymentMetadata.AgentID,
	}
	if paymentMetadata.PlanID != "" {
		params["planId"] = paymentMetadata.PlanID
	}
	if paymentMetadata.IsTrialPlan {
		params["isTrialPlan"] = true
	}
	if paymentMetadata.CostDescription != "" {
		params["costDescription"] = paymentMetadata.CostDescription
	}

	card := base
	card.Capabilities.Extensions = append(append([]Extension{}, base.Capabilities.Extensions...), Extension{
		URI:    paymentExtensionURI,
		Params: params,
	})
	return card, nil
}
