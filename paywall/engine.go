package paywall

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/auth"
	"github.com/nevermined-io/payments-sub002/credits"
	"github.com/nevermined-io/payments-sub002/facilitator"
)

// Handler is the shape a transport binding adapts its native handler
// signature to before calling Wrap; the MCP binding (C8) does so.
type Handler func(ctx context.Context, args map[string]interface{}, extra auth.Extra) (HandlerOutput, error)

// Options configures one Wrap call: the identity of the protected
// capability (used to authenticate and to build its logical URL) and the
// credit cost policy to apply once the handler has run.
type Options struct {
	Resolver    *auth.Resolver
	Facilitator facilitator.Interface
	AgentID     string
	Name        string
	Kind        x402.Kind
	PlanID      string

	Credits       credits.Option
	OnRedeemError x402.OnRedeemErrorPolicy
	Batch         bool

	Logger *slog.Logger
}

// Wrap returns handler wrapped with authentication and credit settlement
// (C6): authenticate first; on success run handler; on a unary result,
// settle immediately; on a streamed result, settle once draining
// completes. A failed handler call never settles.
func Wrap(handler Handler, opts Options) Handler {
	return func(ctx context.Context, args map[string]interface{}, extra auth.Extra) (HandlerOutput, error) {
		authResult, err := opts.Resolver.Authenticate(ctx, auth.Params{
			Extra:   extra,
			AgentID: opts.AgentID,
			Name:    opts.Name,
			Kind:    opts.Kind,
			Args:    stringifyArgs(args),
			PlanID:  opts.PlanID,
		})
		if err != nil {
			return nil, err
		}

		ctx = auth.WithResult(ctx, authResult)

		output, err := handler(ctx, args, extra)
		if err != nil {
			return nil, err
		}

		switch out := output.(type) {
		case ValueOutput:
			return settleValue(ctx, opts, authResult, args, out)
		case StreamOutput:
			return settleStream(ctx, opts, authResult, args, out), nil
		default:
			return output, nil
		}
	}
}

func settleValue(ctx context.Context, opts Options, authResult *auth.Result, args map[string]interface{}, out ValueOutput) (HandlerOutput, error) {
	amount, err := credits.Resolve(opts.Credits, args, out.Value, requestInfo(opts, authResult))
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return out, nil
	}

	info := redeem(ctx, opts, authResult, amount)
	if !info.Redeemed && opts.OnRedeemError == x402.OnRedeemErrorPropagate && info.Error != "" {
		return nil, x402.NewMisconfigurationError(fmt.Sprintf("credit redemption failed: %s", info.Error))
	}
	return Value(mergeInfo(out.Value, info)), nil
}

func settleStream(ctx context.Context, opts Options, authResult *auth.Result, args map[string]interface{}, out StreamOutput) HandlerOutput {
	forwarded := make(chan StreamItem)

	go func() {
		defer close(forwarded)

		send := func(item StreamItem) {
			select {
			case forwarded <- item:
			case <-ctx.Done():
			}
		}

		var last interface{}
		for item := range out.Items {
			send(item)
			if item.Err == nil {
				last = item.Value
			}
		}

		amount, err := credits.Resolve(opts.Credits, args, last, requestInfo(opts, authResult))
		if err != nil {
			if opts.OnRedeemError == x402.OnRedeemErrorPropagate {
				send(StreamItem{Err: err})
			} else if opts.Logger != nil {
				opts.Logger.WarnContext(ctx, "stream credit resolution failed", "error", err)
			}
			return
		}
		if amount <= 0 {
			return
		}

		info := redeem(context.WithoutCancel(ctx), opts, authResult, amount)
		if !info.Redeemed && opts.OnRedeemError == x402.OnRedeemErrorPropagate && info.Error != "" {
			send(StreamItem{Err: x402.NewMisconfigurationError(fmt.Sprintf("credit redemption failed: %s", info.Error))})
		}
	}()

	return Stream(forwarded)
}

// redeem calls settlePermissions against the logical URL first and, on
// failure, retries once against the HTTP URL when one is known (§4.6,
// §5 Ordering). It never returns an error: failures are captured in Info
// so callers can apply OnRedeemErrorPolicy uniformly for both unary and
// streamed results.
func redeem(ctx context.Context, opts Options, authResult *auth.Result, amount int64) Info {
	if authResult.AgentRequest == nil {
		return Info{Redeemed: false, Credits: amount, Error: "no agent request id from verification"}
	}

	req := facilitator.SettleRequest{
		PaymentRequired: facilitator.BuildPaymentRequired(authResult.PlanID, facilitator.BuildOptions{
			Endpoint: authResult.LogicalURL,
			AgentID:  opts.AgentID,
			HTTPVerb: "POST",
		}),
		X402AccessToken: authResult.AccessToken,
		MaxAmount:       strconv.FormatInt(amount, 10),
		AgentRequestID:  authResult.AgentRequest.AgentRequestID,
		Batch:           opts.Batch,
	}

	result, err := opts.Facilitator.SettlePermissions(ctx, req)
	if (err != nil || !result.Success) && authResult.HTTPURL != "" {
		fallback := req
		fallback.PaymentRequired = facilitator.BuildPaymentRequired(authResult.PlanID, facilitator.BuildOptions{
			Endpoint: authResult.HTTPURL,
			AgentID:  opts.AgentID,
			HTTPVerb: "POST",
		})
		result, err = opts.Facilitator.SettlePermissions(ctx, fallback)
	}

	if err != nil {
		if opts.Logger != nil {
			opts.Logger.WarnContext(ctx, "credit settlement request failed", "error", err)
		}
		return Info{Redeemed: false, Credits: amount, Error: err.Error()}
	}
	if !result.Success {
		message := result.ErrorReason
		if message == "" {
			message = "settlement unsuccessful"
		}
		return Info{Redeemed: false, Credits: amount, Error: message}
	}
	return Info{
		Redeemed:         true,
		Credits:          amount,
		TxHash:           result.Transaction,
		Payer:            result.Payer,
		Network:          result.Network,
		CreditsRedeemed:  result.CreditsRedeemed,
		RemainingBalance: result.RemainingBalance,
	}
}

func requestInfo(opts Options, authResult *auth.Result) credits.RequestInfo {
	return credits.RequestInfo{
		AuthHeader: authResult.AccessToken,
		LogicalURL: authResult.LogicalURL,
		ToolName:   opts.Name,
	}
}

func stringifyArgs(args map[string]interface{}) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
