// Package encoding base64/JSON-encodes the two wire payloads the
// engine puts on HTTP headers: the payment-required challenge and the
// settlement outcome. The x402-HTTP binding (C10) uses it for its
// payment-required and payment-response headers.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/paywall"
)

// EncodeChallenge converts a PaymentRequired challenge to base64-encoded
// JSON, the value carried by the payment-required response header.
func EncodeChallenge(challenge x402.PaymentRequired) (string, error) {
	raw, err := json.Marshal(challenge)
	if err != nil {
		return "", fmt.Errorf("encoding: marshaling payment-required challenge: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeChallenge is EncodeChallenge's inverse, for clients that need to
// read a payment-required response header.
func DecodeChallenge(encoded string) (x402.PaymentRequired, error) {
	var challenge x402.PaymentRequired
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return challenge, fmt.Errorf("encoding: decoding payment-required challenge: %w", err)
	}
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return challenge, fmt.Errorf("encoding: unmarshaling payment-required challenge: %w", err)
	}
	return challenge, nil
}

// EncodeSettlement converts a settlement Info to base64-encoded JSON, the
// value carried by the payment-response header.
func EncodeSettlement(info paywall.Info) (string, error) {
	raw, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encoding: marshaling settlement info: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSettlement is EncodeSettlement's inverse.
func DecodeSettlement(encoded string) (paywall.Info, error) {
	var info paywall.Info
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return info, fmt.Errorf("encoding: decoding settlement info: %w", err)
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("encoding: unmarshaling settlement info: %w", err)
	}
	return info, nil
}
