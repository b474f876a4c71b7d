// Package credits resolves the credit cost of a protected call (C5):
// either a fixed amount, a function of the call's args/result/auth, or the
// default of 1 when unset.
package credits

import (
	"github.com/nevermined-io/payments-sub002"
)

// RequestInfo is the subset of the call's auth/request state a dynamic
// credits function may consult.
type RequestInfo struct {
	AuthHeader string
	LogicalURL string
	ToolName   string
}

// FuncArgs is what a dynamic credits function receives.
type FuncArgs struct {
	Args    map[string]interface{}
	Result  interface{}
	Request RequestInfo
}

// Func computes a non-negative credit cost from the call's args, its
// result (nil before the handler has run), and request metadata.
type Func func(FuncArgs) (int64, error)

// Option is a per-handler credits configuration: unset (defaults to 1), a
// fixed amount, or a Func evaluated after the handler runs.
type Option struct {
	fixed   *int64
	dynamic Func
}

// Fixed returns an Option that always resolves to n.
func Fixed(n int64) Option {
	return Option{fixed: &n}
}

// Dynamic returns an Option that resolves by calling fn once the handler's
// result is available.
func Dynamic(fn Func) Option {
	return Option{dynamic: fn}
}

// IsFixed reports whether the option resolves without needing a result,
// i.e. it is safe to resolve before the handler runs (per §4.5, this is
// what lets handlers observe PaywallContext.credits pre-execution).
func (o Option) IsFixed() bool {
	return o.dynamic == nil
}

// Resolve implements the credits.resolve(option, args, result, auth)
// operation from §4.5. result is nil when resolving a fixed option before
// the handler runs. A negative return from a dynamic Func is a contract
// violation and is reported as a Misconfiguration error.
func Resolve(option Option, args map[string]interface{}, result interface{}, req RequestInfo) (int64, error) {
	if option.fixed != nil {
		return *option.fixed, nil
	}
	if option.dynamic == nil {
		return 1, nil
	}

	n, err := option.dynamic(FuncArgs{Args: args, Result: result, Request: req})
	if err != nil {
		return 0, x402.NewMisconfigurationError("credits function failed: " + err.Error())
	}
	if n < 0 {
		return 0, x402.NewMisconfigurationError("credits function returned a negative value")
	}
	return n, nil
}
