package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/nevermined-io/payments-sub002/reqctx"
)

const sessionHeader = "Mcp-Session-Id"

// buildRouter assembles the HTTP middleware chain in front of the MCP
// streamable-HTTP handler: CORS, request ID / real IP / panic recovery,
// session-id issuance, and the request-scoped header store (C7), plus the
// OAuth discovery and health routes a remote MCP client probes before its
// first JSON-RPC call.
func buildRouter(mcpHandler http.Handler, m *Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(sessionMiddleware)
	r.Use(requestContextMiddleware)

	r.Get("/", rootHandler(m))
	r.Get("/health", healthHandler(m))
	r.Get("/.well-known/oauth-authorization-server", oauthAuthorizationServerHandler(m))
	r.Get("/.well-known/oauth-protected-resource", oauthProtectedResourceHandler(m))
	r.Get("/.well-known/openid-configuration", oauthAuthorizationServerHandler(m))
	r.Post("/register", dynamicClientRegistrationHandler)

	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	return r
}

// rootHandler answers a plain GET / probe with a short server identity
// blurb; the JSON-RPC endpoint lives at /mcp, not the catch-all.
func rootHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name":  m.serverName,
			"state": string(m.State()),
		})
	}
}

// sessionMiddleware assigns a session id on the first request of a stream
// and echoes it back on every subsequent one, matching the MCP streamable
// HTTP transport's session header contract.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set(sessionHeader, sessionID)
		next.ServeHTTP(w, r)
	})
}

// requestContextMiddleware installs the RequestContext (C7) so downstream
// auth extraction can fall back to the live HTTP headers regardless of
// what shape the MCP SDK hands a tool handler.
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := make(map[string]string, len(r.Header))
		for name := range r.Header {
			headers[strings.ToLower(name)] = r.Header.Get(name)
		}
		headers["host"] = r.Host

		rc := &reqctx.RequestContext{Headers: headers, Method: r.Method, URL: r.URL.Path}
		reqctx.Run(r.Context(), rc, func(ctx context.Context) {
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
}

func healthHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"state":  string(m.State()),
		})
	}
}

// oauthAuthorizationServerHandler answers the OAuth 2.0 Authorization
// Server Metadata discovery probe (RFC 8414) with a response that tells a
// client this server issues no tokens of its own; its entitlement check is
// the facilitator-backed access token described by /.well-known/oauth-protected-resource.
func oauthAuthorizationServerHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 baseURL(r),
			"registration_endpoint":  baseURL(r) + "/register",
			"response_types_supported": []string{},
			"grant_types_supported":     []string{},
		})
	}
}

func oauthProtectedResourceHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"resource":              baseURL(r),
			"authorization_servers": []string{baseURL(r)},
		})
	}
}

// dynamicClientRegistrationHandler accepts RFC 7591 client registration
// requests with a fixed, non-secret client: entitlement is decided by the
// facilitator access token, not by OAuth client identity.
func dynamicClientRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"client_id":                  "nevermined-mcp-client",
		"client_id_issued_at":        0,
		"token_endpoint_auth_method": "none",
	})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
