package credits

import (
	"errors"
	"testing"

	"github.com/nevermined-io/payments-sub002"
)

func TestResolveUnsetDefaultsToOne(t *testing.T) {
	n, err := Resolve(Option{}, nil, nil, RequestInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected default of 1, got %d", n)
	}
}

func TestResolveFixed(t *testing.T) {
	opt := Fixed(2)
	if !opt.IsFixed() {
		t.Errorf("expected Fixed option to report IsFixed")
	}
	n, err := Resolve(opt, nil, nil, RequestInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestResolveDynamicUsesResult(t *testing.T) {
	opt := Dynamic(func(a FuncArgs) (int64, error) {
		result, _ := a.Result.(map[string]interface{})
		tokens, _ := result["tokens"].(int64)
		return tokens, nil
	})
	if opt.IsFixed() {
		t.Errorf("expected Dynamic option to not report IsFixed")
	}
	n, err := Resolve(opt, nil, map[string]interface{}{"tokens": int64(7)}, RequestInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}
}

func TestResolveNegativeIsMisconfiguration(t *testing.T) {
	opt := Dynamic(func(a FuncArgs) (int64, error) { return -1, nil })
	_, err := Resolve(opt, nil, nil, RequestInfo{})
	var rpcErr *x402.RpcError
	if !errors.As(err, &rpcErr) || rpcErr.Code != x402.CodeMisconfiguration {
		t.Fatalf("expected Misconfiguration error, got %v", err)
	}
}

func TestResolveFuncErrorIsMisconfiguration(t *testing.T) {
	opt := Dynamic(func(a FuncArgs) (int64, error) { return 0, errors.New("boom") })
	_, err := Resolve(opt, nil, nil, RequestInfo{})
	var rpcErr *x402.RpcError
	if !errors.As(err, &rpcErr) || rpcErr.Code != x402.CodeMisconfiguration {
		t.Fatalf("expected Misconfiguration error, got %v", err)
	}
}
