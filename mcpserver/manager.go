// Package mcpserver binds the paywall engine (C6) to an MCP server over
// streamable HTTP, manages that server's lifecycle (C8), and serves the
// OAuth discovery routes (C9).
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpsdk "github.com/mark3labs/mcp-go/server"

	"github.com/nevermined-io/payments-sub002/auth"
	"github.com/nevermined-io/payments-sub002/credits"
	"github.com/nevermined-io/payments-sub002/facilitator"
	"github.com/nevermined-io/payments-sub002/paywall"
)

// State is one of the lifecycle states of a Manager (C8).
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// ErrInvalidTransition is returned when Start or Stop is called from a
// state that does not permit it.
var ErrInvalidTransition = errors.New("mcpserver: invalid state transition")

// ToolOptions configures one payable tool registration.
type ToolOptions struct {
	Credits       credits.Option
	OnRedeemError OnRedeemErrorPolicy
	Batch         bool
}

// OnRedeemErrorPolicy re-exports x402.OnRedeemErrorPolicy so callers don't
// need to import the root package just to configure a tool.
type OnRedeemErrorPolicy = onRedeemErrorPolicy

// Manager owns an MCP server, its payable-tool registrations, and the
// Idle -> Starting -> Running -> Stopping -> Idle lifecycle (C8).
type Manager struct {
	mu    sync.Mutex
	state State

	serverName string
	agentID    string

	mcpServer   *mcpsdk.MCPServer
	resolver    *auth.Resolver
	facilitator facilitator.Interface
	logger      *slog.Logger

	httpServer *http.Server
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New builds a Manager wrapping a fresh MCP server named name/version, tied
// to agentID for entitlement checks.
func New(name, version, agentID string, fac facilitator.Interface, opts ...Option) *Manager {
	m := &Manager{
		state:       StateIdle,
		serverName:  name,
		agentID:     agentID,
		mcpServer:   mcpsdk.NewMCPServer(name, version),
		resolver:    &auth.Resolver{Facilitator: fac, ServerName: name},
		facilitator: fac,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddTool registers a free tool: no entitlement check, no settlement.
func (m *Manager) AddTool(tool mcpproto.Tool, handler mcpsdk.ToolHandlerFunc) {
	m.mcpServer.AddTool(tool, handler)
}

// AddPayableTool registers a tool gated by the paywall engine: every call
// authenticates against planID before running, and settles the resolved
// credit cost afterward.
func (m *Manager) AddPayableTool(tool mcpproto.Tool, handler ToolHandlerFunc, planID string, opts ToolOptions) {
	wrapped := paywall.Wrap(adaptToolHandler(handler), paywall.Options{
		Resolver:      m.resolver,
		Facilitator:   m.facilitator,
		AgentID:       m.agentID,
		Name:          tool.Name,
		Kind:          toolKind,
		PlanID:        planID,
		Credits:       opts.Credits,
		OnRedeemError: x402Policy(opts.OnRedeemError),
		Batch:         opts.Batch,
		Logger:        m.logger,
	})

	m.mcpServer.AddTool(tool, toolHandlerFromPaywall(wrapped, m.logger))
}

// Handler returns the streamable-HTTP handler for this manager's MCP
// server, wrapped with the session and discovery middleware chain (C8).
func (m *Manager) Handler() http.Handler {
	base := mcpsdk.NewStreamableHTTPServer(m.mcpServer)
	return buildRouter(base, m)
}

// Start transitions Idle -> Starting -> Running and begins serving addr.
// It returns once the listener is bound; serving continues in the
// background until Stop is called or the server errors.
func (m *Manager) Start(ctx context.Context, addr string) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot start from state %s", ErrInvalidTransition, m.state)
	}
	m.state = StateStarting
	m.mu.Unlock()

	handler := m.Handler()
	srv := &http.Server{Addr: addr, Handler: handler}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		return fmt.Errorf("mcpserver: listen %s: %w", addr, err)
	}

	m.mu.Lock()
	m.httpServer = srv
	m.state = StateRunning
	m.mu.Unlock()

	go func() {
		m.logger.InfoContext(ctx, "mcp server starting", "addr", listener.Addr().String(), "agentId", m.agentID)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.ErrorContext(ctx, "mcp server stopped unexpectedly", "error", err)
		}
	}()

	return nil
}

// Stop transitions Running -> Stopping -> Idle, gracefully shutting down
// the underlying HTTP server.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot stop from state %s", ErrInvalidTransition, m.state)
	}
	m.state = StateStopping
	srv := m.httpServer
	m.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.httpServer = nil
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "mcp server stopped")
	return err
}
