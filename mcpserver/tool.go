package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpsdk "github.com/mark3labs/mcp-go/server"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/auth"
	"github.com/nevermined-io/payments-sub002/paywall"
)

const toolKind = x402.KindTool

type onRedeemErrorPolicy = x402.OnRedeemErrorPolicy

func x402Policy(p onRedeemErrorPolicy) x402.OnRedeemErrorPolicy {
	if p == "" {
		return x402.OnRedeemErrorIgnore
	}
	return p
}

// ToolHandlerFunc is the handler shape a caller registers with
// AddPayableTool: ordinary business logic, oblivious to authentication and
// settlement, which Manager wraps via the paywall engine.
type ToolHandlerFunc func(ctx context.Context, args map[string]interface{}) (paywall.HandlerOutput, error)

// adaptToolHandler lifts a ToolHandlerFunc into the paywall.Handler shape.
// The incoming extra is unused here: bearer extraction falls back to the
// request-scoped header store (C7) that the HTTP middleware chain installs
// before the MCP SDK ever dispatches to a tool handler.
func adaptToolHandler(handler ToolHandlerFunc) paywall.Handler {
	return func(ctx context.Context, args map[string]interface{}, extra auth.Extra) (paywall.HandlerOutput, error) {
		return handler(ctx, args)
	}
}

// toolHandlerFromPaywall adapts a wrapped paywall.Handler back into the MCP
// SDK's ToolHandlerFunc shape, marshaling HandlerOutput into a tool result.
func toolHandlerFromPaywall(wrapped paywall.Handler, logger *slog.Logger) mcpsdk.ToolHandlerFunc {
	return func(ctx context.Context, request mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		args := request.GetArguments()

		output, err := wrapped(ctx, args, auth.Extra{})
		if err != nil {
			return errorResult(err.Error()), nil
		}

		switch out := output.(type) {
		case paywall.ValueOutput:
			return textResult(out.Value)
		case paywall.StreamOutput:
			return drainStreamResult(out)
		default:
			return textResult(nil)
		}
	}
}

func textResult(value interface{}) (*mcpproto.CallToolResult, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return errorResult("failed to encode tool result: " + err.Error()), nil
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(string(raw))},
	}, nil
}

func errorResult(message string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(message)},
		IsError: true,
	}
}

// drainStreamResult collects a streamed handler's output into a single
// tool result: the MCP tools/call contract is unary, so a streamed result
// is flattened into an ordered array, failing fast on the first error item.
func drainStreamResult(out paywall.StreamOutput) (*mcpproto.CallToolResult, error) {
	items := make([]interface{}, 0)
	for item := range out.Items {
		if item.Err != nil {
			return errorResult(item.Err.Error()), nil
		}
		items = append(items, item.Value)
	}
	return textResult(items)
}
