package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	gatewaydomain "github.com/craftforge/payouts/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string, clk clock.Clock) *Client {
	t.Helper()
	return NewClient(config.Config{
		PayPalAPIURL:       baseURL,
		PayPalClientID:     "client-id",
		PayPalClientSecret: "client-secret",
	}, clk, zap.NewNop())
}

func tokenResponse(w http.ResponseWriter, token string, expiresIn int64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func TestDoAuthorizesWithExchangedToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			tokenResponse(w, "token-1", 3600)
		case "/payments/payouts":
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"batch_header":{"payout_batch_id":"batch-9"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	var out struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
		} `json:"batch_header"`
	}
	err := client.Do(context.Background(), http.MethodPost, "payments/payouts", map[string]string{"k": "v"}, "", false, &out)
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "batch-9", out.BatchHeader.PayoutBatchID)
}

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			exchanges.Add(1)
			time.Sleep(20 * time.Millisecond)
			tokenResponse(w, "token-1", 3600)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), exchanges.Load())
}

func TestExpiredCredentialIsRefreshed(t *testing.T) {
	var exchanges atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			exchanges.Add(1)
			tokenResponse(w, "token", 3600)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	fake := clock.NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	client := newTestClient(t, srv.URL+"/", fake)

	require.NoError(t, client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil))
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil))
	assert.Equal(t, int64(1), exchanges.Load())

	fake.Advance(2 * time.Hour)
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil))
	assert.Equal(t, int64(2), exchanges.Load())
}

func TestExchangeFailureIsAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gatewaydomain.ErrAuthenticationFailed)
}

func TestAPIErrorShapeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			tokenResponse(w, "token", 3600)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"INSUFFICIENT_FUNDS","message":"Sender does not have sufficient funds."}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	err := client.Do(context.Background(), http.MethodPost, "payments/payouts", map[string]string{}, "", false, nil)
	require.Error(t, err)

	var gatewayErr *gatewaydomain.GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, "paypal", gatewayErr.Gateway)
	assert.Equal(t, "INSUFFICIENT_FUNDS", gatewayErr.Name)
	assert.Equal(t, "Sender does not have sufficient funds.", gatewayErr.Message)
}

func TestIdentityErrorShapeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			tokenResponse(w, "token", 3600)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request","error_description":"missing parameter"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
	require.Error(t, err)

	var gatewayErr *gatewaydomain.GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, "invalid_request", gatewayErr.Name)
	assert.Equal(t, "missing parameter", gatewayErr.Message)
}

func TestUnrecognizedErrorBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			tokenResponse(w, "token", 3600)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gatewaydomain.ErrMalformedResponse)
}

func TestNonJSONBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			tokenResponse(w, "token", 3600)
			return
		}
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gatewaydomain.ErrMalformedResponse)
}

func TestUnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenResponse(w, "token", 3600)
	}))
	client := newTestClient(t, srv.URL+"/", clock.NewSystemClock())

	// Warm the credential, then kill the server.
	require.NoError(t, client.Do(context.Background(), http.MethodGet, srv.URL, nil, "", true, nil))
	srv.Close()

	err := client.Do(context.Background(), http.MethodGet, "me", nil, "", false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
}
