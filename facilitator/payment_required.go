package facilitator

import "github.com/nevermined-io/payments-sub002"

// schemeNetworkDefaults maps a scheme to the network used when the caller
// doesn't specify one explicitly. Table-driven per §4.2; extend this table
// to support additional schemes without touching BuildPaymentRequired.
var schemeNetworkDefaults = map[string]string{
	"nvm:erc4337": "eip155:84532",
}

// BuildOptions configures BuildPaymentRequired.
type BuildOptions struct {
	Endpoint    string
	AgentID     string
	HTTPVerb    string
	Network     string
	Scheme      string
	Description string
}

// BuildPaymentRequired is the pure function from §4.2: given a planId and
// options, it produces the x402 v2 challenge object. Scheme defaults to
// "nvm:erc4337"; network defaults via schemeNetworkDefaults when unset.
func BuildPaymentRequired(planID string, opts BuildOptions) x402.PaymentRequired {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = defaultScheme
	}
	network := opts.Network
	if network == "" {
		network = schemeNetworkDefaults[scheme]
	}

	accept := x402.AcceptEntry{
		Scheme:  scheme,
		Network: network,
		PlanID:  planID,
	}
	if opts.AgentID != "" || opts.HTTPVerb != "" {
		accept.Extra = &x402.AcceptExtra{
			AgentID:  opts.AgentID,
			HTTPVerb: opts.HTTPVerb,
		}
	}

	return x402.NewPaymentRequired(
		x402.Resource{URL: opts.Endpoint, Description: opts.Description},
		[]x402.AcceptEntry{accept},
	)
}
