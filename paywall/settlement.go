package paywall

// Info is the settlement outcome merged into a handler's result metadata,
// wire-shaped to match x402.SettleResult's field names (§4.2, §8 scenario
// 1/6) so the paymentResponse entry and the payment-response header carry
// success, creditsRedeemed, remainingBalance, and network verbatim. Info is
// stored under the top-level paymentResponse key, not inside _meta. When
// the resolved credit cost is zero or negative, settlement is skipped and
// no Info is attached. Redeemed is false when redemption failed and the
// failure was swallowed under OnRedeemErrorIgnore.
type Info struct {
	Redeemed         bool   `json:"success"`
	Credits          int64  `json:"credits,omitempty"`
	TxHash           string `json:"txHash,omitempty"`
	Payer            string `json:"payer,omitempty"`
	Network          string `json:"network,omitempty"`
	CreditsRedeemed  string `json:"creditsRedeemed,omitempty"`
	RemainingBalance string `json:"remainingBalance,omitempty"`
	Error            string `json:"error,omitempty"`
}

const metaKey = "paymentResponse"

// mergeInfo attaches info to value. Map-shaped values gain a paymentResponse
// key; anything else is wrapped so the caller can still reach both the
// original value and the settlement outcome.
func mergeInfo(value interface{}, info Info) interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		cloned := make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			cloned[k] = v
		}
		cloned[metaKey] = info
		return cloned
	}
	return map[string]interface{}{
		"result": value,
		metaKey:  info,
	}
}
