// Package x402http implements the x402-HTTP binding (C10): a net/http
// middleware that gates a route table of plain HTTP endpoints behind the
// same auth-and-settle engine the MCP binding uses, using the x402 wire's
// lowercase header names (payment-signature, payment-required,
// payment-response) instead of the legacy X-PAYMENT family.
package x402http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/auth"
	"github.com/nevermined-io/payments-sub002/credits"
	"github.com/nevermined-io/payments-sub002/encoding"
	"github.com/nevermined-io/payments-sub002/facilitator"
	"github.com/nevermined-io/payments-sub002/paywall"
	"github.com/nevermined-io/payments-sub002/reqctx"
)

const (
	headerPaymentSignature = "payment-signature"
	headerPaymentRequired  = "payment-required"
	headerPaymentResponse  = "payment-response"
)

// RouteConfig is one protected route's entitlement and settlement policy.
type RouteConfig struct {
	PlanID        string
	AgentID       string
	Network       string
	Kind          x402.Kind
	Credits       credits.Option
	OnRedeemError x402.OnRedeemErrorPolicy
	Batch         bool
}

// Middleware gates a fixed route table behind the auth/settlement engine.
// Routes not present in the table pass through untouched.
type Middleware struct {
	routes      []compiledRoute
	resolver    *auth.Resolver
	facilitator facilitator.Interface
	logger      *slog.Logger
}

// New builds a Middleware. routes keys are "METHOD /path/:param" patterns,
// e.g. "GET /reports/:id".
func New(serverName string, fac facilitator.Interface, routes map[string]RouteConfig, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Middleware{
		resolver:    &auth.Resolver{Facilitator: fac, ServerName: serverName},
		facilitator: fac,
		logger:      logger,
	}
	for pattern, cfg := range routes {
		m.routes = append(m.routes, compileRoute(pattern, cfg))
	}
	return m
}

// Wrap gates next behind the route table: unmatched requests pass through;
// matched requests must authenticate before next runs, and settle
// immediately after next's response is committed.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, ok := matchRoute(m.routes, r.Method, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		headers := make(map[string]string, len(r.Header)+1)
		for name := range r.Header {
			headers[strings.ToLower(name)] = r.Header.Get(name)
		}
		headers["host"] = r.Host
		// The bearer comes from payment-signature only.
		delete(headers, "authorization")
		if sig := r.Header.Get(headerPaymentSignature); sig != "" {
			headers["authorization"] = sig
		}

		rc := &reqctx.RequestContext{Headers: headers, Method: r.Method, URL: r.URL.Path}
		ctx := reqctx.WithContext(r.Context(), rc)

		authResult, err := m.resolver.Authenticate(ctx, auth.Params{
			Extra:   auth.Extra{},
			AgentID: route.config.AgentID,
			Name:    route.name,
			Kind:    routeKind(route.config),
			Args:    params,
			PlanID:  route.config.PlanID,
		})
		if err != nil {
			m.writePaymentRequired(w, err)
			return
		}

		ctx = auth.WithResult(ctx, authResult)
		r = r.WithContext(ctx)

		interceptor := &settlementInterceptor{
			w:          w,
			middleware: m,
			config:     route.config,
			authResult: authResult,
			ctx:        ctx,
		}
		next.ServeHTTP(interceptor, r)
	})
}

func routeKind(cfg RouteConfig) x402.Kind {
	if cfg.Kind == "" {
		return x402.KindResource
	}
	return cfg.Kind
}

func (m *Middleware) writePaymentRequired(w http.ResponseWriter, err error) {
	rpcErr, ok := err.(*x402.RpcError)
	if !ok {
		m.logger.Error("unexpected auth error type", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if rpcErr.Code == x402.CodeMisconfiguration {
		http.Error(w, rpcErr.Message, http.StatusInternalServerError)
		return
	}

	challenge := x402.NewPaymentRequired(x402.Resource{Description: rpcErr.Message}, []x402.AcceptEntry{})
	if encoded, err := encoding.EncodeChallenge(challenge); err == nil {
		w.Header().Set(headerPaymentRequired, encoded)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(challenge)
}

// redeem performs credit settlement for one completed request, mirroring
// paywall.redeem's contract exactly: settle against the logical URL
// first, retry once against the HTTP URL on failure when one is known
// (§4.6, §5 Ordering), and never error — callers inspect Info.
func (m *Middleware) redeem(ctx context.Context, cfg RouteConfig, result *auth.Result, amount int64) paywall.Info {
	if result.AgentRequest == nil {
		return paywall.Info{Redeemed: false, Credits: amount, Error: "no agent request id from verification"}
	}

	req := facilitator.SettleRequest{
		PaymentRequired: facilitator.BuildPaymentRequired(result.PlanID, facilitator.BuildOptions{
			Endpoint: result.LogicalURL,
			AgentID:  cfg.AgentID,
			HTTPVerb: "POST",
			Network:  cfg.Network,
		}),
		X402AccessToken: result.AccessToken,
		MaxAmount:       strconv.FormatInt(amount, 10),
		AgentRequestID:  result.AgentRequest.AgentRequestID,
		Batch:           cfg.Batch,
	}

	settleResult, err := m.facilitator.SettlePermissions(ctx, req)
	if (err != nil || !settleResult.Success) && result.HTTPURL != "" {
		fallback := req
		fallback.PaymentRequired = facilitator.BuildPaymentRequired(result.PlanID, facilitator.BuildOptions{
			Endpoint: result.HTTPURL,
			AgentID:  cfg.AgentID,
			HTTPVerb: "POST",
			Network:  cfg.Network,
		})
		settleResult, err = m.facilitator.SettlePermissions(ctx, fallback)
	}

	if err != nil {
		m.logger.Warn("credit settlement request failed", "error", err)
		return paywall.Info{Redeemed: false, Credits: amount, Error: err.Error()}
	}
	if !settleResult.Success {
		message := settleResult.ErrorReason
		if message == "" {
			message = "settlement unsuccessful"
		}
		return paywall.Info{Redeemed: false, Credits: amount, Error: message}
	}
	return paywall.Info{
		Redeemed:         true,
		Credits:          amount,
		TxHash:           settleResult.Transaction,
		Payer:            settleResult.Payer,
		Network:          settleResult.Network,
		CreditsRedeemed:  settleResult.CreditsRedeemed,
		RemainingBalance: settleResult.RemainingBalance,
	}
}
