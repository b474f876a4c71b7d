package x402

// Kind identifies the sort of capability a paywalled handler exposes.
// It drives both the logical-URL shape (C3) and the MCP registration path
// (C8): tools and prompts pluralize as "<kind>s", resources always use
// "resources" regardless of spelling.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// OnRedeemErrorPolicy controls whether a failed settlement is merged into
// response metadata (the default, "ignore") or raised to the caller as a
// Misconfiguration error ("propagate").
type OnRedeemErrorPolicy string

const (
	OnRedeemErrorIgnore    OnRedeemErrorPolicy = "ignore"
	OnRedeemErrorPropagate OnRedeemErrorPolicy = "propagate"
)

// Resource describes the protected endpoint a PaymentRequired challenge
// refers to.
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// AcceptExtra carries scheme-specific hints a facilitator may use to route
// or display an accepted payment method.
type AcceptExtra struct {
	AgentID  string `json:"agentId,omitempty"`
	HTTPVerb string `json:"httpVerb,omitempty"`
	Version  string `json:"version,omitempty"`
}

// AcceptEntry is one payment method a resource is willing to accept.
type AcceptEntry struct {
	Scheme  string       `json:"scheme"`
	Network string       `json:"network"`
	PlanID  string       `json:"planId"`
	Extra   *AcceptExtra `json:"extra,omitempty"`
}

// PaymentRequired is the x402 v2 challenge object. It is emitted on 402
// responses and echoed back into verify/settle calls against the
// facilitator.
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Resource    Resource               `json:"resource"`
	Accepts     []AcceptEntry          `json:"accepts"`
	Extensions  map[string]interface{} `json:"extensions"`
}

// NewPaymentRequired builds a PaymentRequired with the extensions map
// always present (never nil), so callers can round-trip it through JSON
// without special-casing an absent "extensions" key.
func NewPaymentRequired(resource Resource, accepts []AcceptEntry) PaymentRequired {
	return PaymentRequired{
		X402Version: 2,
		Resource:    resource,
		Accepts:     accepts,
		Extensions:  map[string]interface{}{},
	}
}

// Balance is the subscriber's plan/credit snapshot as reported by the
// facilitator at verification time.
type Balance struct {
	PlanID          string `json:"planId"`
	PlanName        string `json:"planName,omitempty"`
	PlanType        string `json:"planType,omitempty"`
	HolderAddress   string `json:"holderAddress"`
	Balance         string `json:"balance,omitempty"`
	CreditsContract string `json:"creditsContract,omitempty"`
	PricePerCredit  string `json:"pricePerCredit,omitempty"`
	IsSubscriber    bool   `json:"isSubscriber"`
}

// StartAgentRequest is the observability payload a facilitator returns
// alongside a successful verification; it is opaque to the paywall engine
// beyond the fields it re-exposes in PaywallContext.
type StartAgentRequest struct {
	AgentRequestID string  `json:"agentRequestId"`
	AgentName      string  `json:"agentName,omitempty"`
	AgentID        string  `json:"agentId"`
	Balance        Balance `json:"balance"`
	URLMatching    string  `json:"urlMatching,omitempty"`
	VerbMatching   string  `json:"verbMatching,omitempty"`
	Batch          bool    `json:"batch,omitempty"`
}

// VerifyResult is the facilitator's answer to a verifyPermissions call.
type VerifyResult struct {
	IsValid        bool               `json:"isValid"`
	InvalidReason  string             `json:"invalidReason,omitempty"`
	Payer          string             `json:"payer,omitempty"`
	AgentRequestID string             `json:"agentRequestId,omitempty"`
	AgentRequest   *StartAgentRequest `json:"agentRequest,omitempty"`
	URLMatching    string             `json:"urlMatching,omitempty"`
}

// SettleResult is the facilitator's answer to a settlePermissions call.
// Transaction is the empty string on failure.
type SettleResult struct {
	Success          bool   `json:"success"`
	ErrorReason      string `json:"errorReason,omitempty"`
	Payer            string `json:"payer,omitempty"`
	Transaction      string `json:"transaction"`
	Network          string `json:"network,omitempty"`
	CreditsRedeemed  string `json:"creditsRedeemed,omitempty"`
	RemainingBalance string `json:"remainingBalance,omitempty"`
	OrderTx          string `json:"orderTx,omitempty"`
}
