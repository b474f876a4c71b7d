package x402

import "time"

// Timeouts bounds the facilitator and A2A calls the engine makes on the
// caller's behalf. The library does not apply these itself: server paths
// are left unbounded unless the caller's context carries a deadline or the
// caller supplies an *http.Client with a timeout (§5).
type Timeouts struct {
	VerifyTimeout  time.Duration
	SettleTimeout  time.Duration
	RequestTimeout time.Duration
}

// DefaultTimeouts holds suggested bounds for callers that want them; no
// code in this library reads it.
var DefaultTimeouts = Timeouts{
	VerifyTimeout:  10 * time.Second,
	SettleTimeout:  30 * time.Second,
	RequestTimeout: 10 * time.Second,
}
