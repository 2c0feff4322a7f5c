package tremendous

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/craftforge/payouts/internal/config"
	gatewaydomain "github.com/craftforge/payouts/internal/gateway/domain"
	obsmetrics "github.com/craftforge/payouts/internal/observability/metrics"
	"go.uber.org/zap"
)

const gatewayName = "tremendous"

// Client executes requests against the Tremendous REST API with a static
// bearer token from configuration.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.TremendousAPIURL,
		apiKey:     cfg.TremendousAPIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Named("gateway.tremendous"),
	}
}

// Do builds an authenticated request and decodes the response into out.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding tremendous request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building tremendous request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	obsmetrics.ObserveGatewayRequest(gatewayName, method, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("could not communicate with Tremendous: %w", gatewaydomain.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(raw) {
		return fmt.Errorf("could not retrieve Tremendous response body: %w", gatewaydomain.ErrMalformedResponse)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unexpected Tremendous response shape: %w", gatewaydomain.ErrMalformedResponse)
		}
	}
	return nil
}

func decodeError(raw []byte) error {
	var wrapper struct {
		Errors *struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Errors != nil && wrapper.Errors.Message != "" {
		return &gatewaydomain.GatewayError{Gateway: gatewayName, Message: wrapper.Errors.Message}
	}
	return fmt.Errorf("could not retrieve Tremendous error body: %w", gatewaydomain.ErrMalformedResponse)
}
