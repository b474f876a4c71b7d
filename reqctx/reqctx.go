// Package reqctx implements the request-scoped context store (C7): a
// task-local association between the current logical request and its
// RequestContext, valid anywhere that request's context.Context is
// threaded, including across suspension points. Outside a Run call, the
// accessor returns (nil, false). No parent/child inheritance rules are
// needed: one context per request.
package reqctx

import (
	"context"
	"strings"
)

// RequestContext is the data propagated for the lifetime of one inbound
// HTTP request: its headers (lower-cased keys), method, and URL.
type RequestContext struct {
	Headers map[string]string
	Method  string
	URL     string
}

// Header looks up a header case-insensitively.
func (rc *RequestContext) Header(name string) (string, bool) {
	if rc == nil || rc.Headers == nil {
		return "", false
	}
	v, ok := rc.Headers[strings.ToLower(name)]
	return v, ok
}

type ctxKey struct{}

// WithContext installs rc into ctx. Any code that receives the returned
// context — directly or via further derived contexts — observes the same
// rc via FromContext.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext retrieves the RequestContext installed by the nearest
// enclosing WithContext call, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*RequestContext)
	if !ok || rc == nil {
		return nil, false
	}
	return rc, true
}

// Run installs rc for the duration of fn, mirroring the spec's
// run(ctx, fn) entry point: fn (and anything it calls with the context it
// receives) observes rc via FromContext.
func Run(ctx context.Context, rc *RequestContext, fn func(ctx context.Context)) {
	fn(WithContext(ctx, rc))
}
