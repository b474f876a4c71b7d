// Package token decodes x402 access tokens (C1).
//
// An access token is a three-part dot-separated base64url payload, shaped
// like a JWT. This package never verifies its signature — that is the
// facilitator's job — it only decodes the middle (claims) segment so the
// rest of the engine can read acceptedPlanId and subscriberAddress.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nevermined-io/payments-sub002"
)

// Authorization carries the EIP-3009-shaped authorization embedded in a
// token's payload; only From is interpreted by this library.
type Authorization struct {
	From string `json:"from"`
}

// Payload is the "payload" claim of an access token.
type Payload struct {
	Authorization Authorization `json:"authorization"`
}

// Claims is the decoded form of an access token's middle segment. Fields
// the engine does not interpret (Signature, SessionKeys) are kept as
// pass-through values.
type Claims struct {
	jwt.RegisteredClaims

	AcceptedPlanID string                 `json:"acceptedPlanId,omitempty"`
	Scheme         string                 `json:"scheme,omitempty"`
	Network        string                 `json:"network,omitempty"`
	Payload        Payload                `json:"payload"`
	Signature      interface{}            `json:"signature,omitempty"`
	SessionKeys    map[string]interface{} `json:"sessionKeys,omitempty"`
}

// SubscriberAddress returns payload.authorization.from.
func (c *Claims) SubscriberAddress() string {
	return c.Payload.Authorization.From
}

// Usable reports the C1 invariant: a decoded token is only usable once
// both a plan ID and a subscriber address are resolvable from it.
func (c *Claims) Usable() bool {
	return c.AcceptedPlanID != "" && c.SubscriberAddress() != ""
}

// Decode splits raw on '.', base64url-decodes the middle segment, and
// JSON-parses it into Claims. It fails with x402.ErrInvalidToken when
// segments are missing, the base64 is invalid, or the JSON is malformed.
// The signature segment is never checked.
func Decode(raw string) (*Claims, error) {
	parser := jwt.NewParser()
	var claims Claims
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrInvalidToken, err)
	}
	return &claims, nil
}
