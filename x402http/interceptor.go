package x402http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/nevermined-io/payments-sub002"
	"github.com/nevermined-io/payments-sub002/auth"
	"github.com/nevermined-io/payments-sub002/credits"
	"github.com/nevermined-io/payments-sub002/encoding"
)

// settlementInterceptor wraps the ResponseWriter to settle credits at the
// moment the wrapped handler commits its response. Settlement happens
// inside WriteHeader, never after ServeHTTP returns. Under
// OnRedeemErrorIgnore a failed settlement does not change the status or
// body: the payment-response header carries success=false and the error,
// and a failed settlement request is logged. Under OnRedeemErrorPropagate
// the response is replaced by a 500.
type settlementInterceptor struct {
	w          http.ResponseWriter
	middleware *Middleware
	config     RouteConfig
	authResult *auth.Result
	ctx        context.Context

	committed bool
	hijacked  bool
}

func (i *settlementInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *settlementInterceptor) Write(b []byte) (int, error) {
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}
	if i.hijacked {
		return len(b), nil
	}
	return i.w.Write(b)
}

func (i *settlementInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	if statusCode >= 400 {
		i.w.WriteHeader(statusCode)
		return
	}

	amount, err := credits.Resolve(i.config.Credits, nil, nil, credits.RequestInfo{
		AuthHeader: i.authResult.AccessToken,
		LogicalURL: i.authResult.LogicalURL,
	})
	if err != nil {
		if i.config.OnRedeemError == x402.OnRedeemErrorPropagate {
			i.middleware.logger.ErrorContext(i.ctx, "credit resolution failed, blocking response", "error", err)
			i.hijacked = true
			http.Error(i.w, err.Error(), http.StatusInternalServerError)
			return
		}
		i.middleware.logger.WarnContext(i.ctx, "credit resolution failed, settlement skipped", "error", err)
		i.w.WriteHeader(statusCode)
		return
	}

	if amount > 0 {
		info := i.middleware.redeem(i.ctx, i.config, i.authResult, amount)
		if !info.Redeemed && i.config.OnRedeemError == x402.OnRedeemErrorPropagate {
			i.hijacked = true
			http.Error(i.w, "settlement failed: "+info.Error, http.StatusInternalServerError)
			return
		}
		if encoded, err := encoding.EncodeSettlement(info); err == nil {
			i.w.Header().Set(headerPaymentResponse, encoded)
		}
	}

	i.w.WriteHeader(statusCode)
}

func (i *settlementInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (i *settlementInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("x402http: hijacking not supported")
}
