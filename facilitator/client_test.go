package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevermined-io/payments-sub002"
)

func TestVerifyPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/permissions/verify" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.X402AccessToken != "tok" {
			t.Errorf("expected token 'tok', got %q", body.X402AccessToken)
		}
		_ = json.NewEncoder(w).Encode(x402.VerifyResult{IsValid: true, Payer: "0xab", AgentRequestID: "r1"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.VerifyPermissions(context.Background(), VerifyRequest{X402AccessToken: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid || result.AgentRequestID != "r1" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestVerifyPermissionsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("facilitator down"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.VerifyPermissions(context.Background(), VerifyRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if be, ok := err.(*x402.BackendError); !ok || be.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected BackendError with 503, got %v (%T)", err, err)
	}
}

func TestSettlePermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(x402.SettleResult{Success: true, Transaction: "0xdead", CreditsRedeemed: "2"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.SettlePermissions(context.Background(), SettleRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Transaction != "0xdead" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAuthorizationHeaderSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(x402.VerifyResult{})
	}))
	defer srv.Close()

	c := New(srv.URL, WithAuthorization("Bearer apikey"))
	_, _ = c.VerifyPermissions(context.Background(), VerifyRequest{})
	if gotAuth != "Bearer apikey" {
		t.Errorf("expected static authorization header, got %q", gotAuth)
	}
}

func TestAuthorizationProviderTakesPrecedence(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(x402.VerifyResult{})
	}))
	defer srv.Close()

	c := New(srv.URL,
		WithAuthorization("Bearer static"),
		WithAuthorizationProvider(func(ctx context.Context) (string, error) {
			return "Bearer dynamic", nil
		}),
	)
	_, _ = c.VerifyPermissions(context.Background(), VerifyRequest{})
	if gotAuth != "Bearer dynamic" {
		t.Errorf("expected dynamic authorization header to win, got %q", gotAuth)
	}
}

func TestFinishSimulationRequestRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SimulateResult{Success: true, TxHash: "0xsim"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.FinishSimulationRequest(context.Background(), "r1", "tok", 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !result.Success || result.TxHash != "0xsim" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPlanSchemeCacheHitAvoidsFetch(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(map[string]string{"scheme": "nvm:erc4337"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < 5; i++ {
		scheme, err := c.PlanScheme(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scheme != "nvm:erc4337" {
			t.Errorf("unexpected scheme %q", scheme)
		}
	}
	if fetches != 1 {
		t.Errorf("expected exactly 1 fetch across repeated calls, got %d", fetches)
	}
}

func TestPlanSchemeDefaultsOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	scheme, err := c.PlanScheme(context.Background(), "missing-plan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scheme != defaultScheme {
		t.Errorf("expected default scheme on fetch failure, got %q", scheme)
	}
}
