package auth

import "context"

type resultCtxKey struct{}

// WithResult installs an authenticated Result into ctx so that the wrapped
// handler (C6) and anything it calls can read it without threading an extra
// parameter through every call site.
func WithResult(ctx context.Context, result *Result) context.Context {
	return context.WithValue(ctx, resultCtxKey{}, result)
}

// ResultFromContext retrieves the Result installed by WithResult, if any.
func ResultFromContext(ctx context.Context) (*Result, bool) {
	result, ok := ctx.Value(resultCtxKey{}).(*Result)
	if !ok || result == nil {
		return nil, false
	}
	return result, true
}
