package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	gatewaydomain "github.com/craftforge/payouts/internal/gateway/domain"
	obsmetrics "github.com/craftforge/payouts/internal/observability/metrics"
	"go.uber.org/zap"
)

const gatewayName = "paypal"

// Client executes authenticated requests against the PayPal REST API. It owns
// the cached OAuth credential and refreshes it lazily; at most one refresh is
// in flight at a time, with concurrent callers blocking behind it.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	clock        clock.Clock
	log          *zap.Logger

	mu    sync.RWMutex
	creds *credentials
}

type credentials struct {
	accessToken string
	tokenType   string
	expiresAt   time.Time
}

func NewClient(cfg config.Config, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		baseURL:      cfg.PayPalAPIURL,
		clientID:     cfg.PayPalClientID,
		clientSecret: cfg.PayPalClientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clock:        clk,
		log:          log.Named("gateway.paypal"),
	}
}

// Do builds an authenticated request and decodes the response into out.
// body is JSON-encoded when non-nil; rawText is sent verbatim otherwise.
// When noAPIPrefix is set, path is used as the full URL.
func (c *Client) Do(ctx context.Context, method, path string, body any, rawText string, noAPIPrefix bool, out any) error {
	creds, err := c.getValidCredentials(ctx)
	if err != nil {
		return err
	}

	target := path
	if !noAPIPrefix {
		target = c.baseURL + path
	}

	var reader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding paypal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	} else if rawText != "" {
		reader = strings.NewReader(rawText)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("building paypal request: %w", err)
	}
	req.Header.Set("Authorization", creds.tokenType+" "+creds.accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	obsmetrics.ObserveGatewayRequest(gatewayName, method, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("could not communicate with PayPal: %w", gatewaydomain.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(raw) {
		return fmt.Errorf("could not retrieve PayPal response body: %w", gatewaydomain.ErrMalformedResponse)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeError(raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unexpected PayPal response shape: %w", gatewaydomain.ErrMalformedResponse)
		}
	}
	return nil
}

// decodeError probes the two known PayPal error shapes before giving up.
func (c *Client) decodeError(raw []byte) error {
	var apiErr struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Name != "" {
		return &gatewaydomain.GatewayError{Gateway: gatewayName, Name: apiErr.Name, Message: apiErr.Message}
	}

	var identityErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &identityErr); err == nil && identityErr.Error != "" {
		return &gatewaydomain.GatewayError{Gateway: gatewayName, Name: identityErr.Error, Message: identityErr.ErrorDescription}
	}

	return fmt.Errorf("could not retrieve PayPal error body: %w", gatewaydomain.ErrMalformedResponse)
}

func (c *Client) getValidCredentials(ctx context.Context) (credentials, error) {
	c.mu.RLock()
	if c.creds != nil && c.clock.Now().Before(c.creds.expiresAt) {
		creds := *c.creds
		c.mu.RUnlock()
		return creds, nil
	}
	c.mu.RUnlock()

	return c.refreshCredentials(ctx)
}

// refreshCredentials performs the client-credentials exchange. Callers that
// lost the race re-check under the write lock and reuse the fresh credential
// instead of issuing a second exchange.
func (c *Client) refreshCredentials(ctx context.Context) (credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds != nil && c.clock.Now().Before(c.creds.expiresAt) {
		return *c.creds, nil
	}

	creds, err := c.exchangeClientCredentials(ctx)
	obsmetrics.IncCredentialRefresh(gatewayName, err)
	if err != nil {
		c.log.Warn("paypal credential refresh failed", zap.Error(err))
		return credentials{}, err
	}

	c.creds = &creds
	return creds, nil
}

func (c *Client) exchangeClientCredentials(ctx context.Context) (credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return credentials{}, fmt.Errorf("building paypal token request: %w", gatewaydomain.ErrAuthenticationFailed)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return credentials{}, fmt.Errorf("error while authenticating with PayPal: %w", gatewaydomain.ErrAuthenticationFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return credentials{}, fmt.Errorf("error while authenticating with PayPal (status %d): %w", resp.StatusCode, gatewaydomain.ErrAuthenticationFailed)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil || token.AccessToken == "" {
		return credentials{}, fmt.Errorf("error while authenticating with PayPal (deser error): %w", gatewaydomain.ErrAuthenticationFailed)
	}

	return credentials{
		accessToken: token.AccessToken,
		tokenType:   token.TokenType,
		expiresAt:   c.clock.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}
