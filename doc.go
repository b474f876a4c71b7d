// Package x402 implements a credit-based paywall for machine-callable
// services (MCP tools/resources/prompts, plain HTTP routes, and A2A agents).
//
// A caller presents an x402 access token; the paywall engine verifies
// entitlement against a remote facilitator, lets the protected handler run,
// resolves a credit cost, settles that cost with the facilitator, and
// reports settlement metadata back to the caller for both unary and
// streaming responses.
//
// Subpackages implement the individual pieces: token decoding (token),
// the facilitator HTTP client (facilitator), logical-URL construction
// (logicalurl), bearer extraction and entitlement resolution (auth),
// credit-cost resolution (credits), the orchestrating decorator (paywall),
// request-scoped context propagation (reqctx), the MCP binding
// (mcpserver), the x402-over-HTTP binding (x402http), the A2A client
// registry and streaming client (a2a), and the agent-card builder
// (agentcard). This package holds the data model and error taxonomy
// shared by all of them.
package x402
