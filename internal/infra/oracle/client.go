package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"otto/internal/domain/ports"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
)

// providerCodec converts between the engine's transcript shape and one
// provider wire format. The two formats are incompatible; keeping each behind
// this interface isolates format drift from the loop.
type providerCodec interface {
	endpoint(baseURL string) string
	headers(req *http.Request, apiKey string)
	encode(model string, oreq ports.OracleRequest) ([]byte, error)
	decode(body []byte) (*ports.OracleResponse, error)
}

// Client reaches the reasoning oracle over HTTP and normalizes its replies.
type Client struct {
	model      string
	baseURL    string
	apiKey     string
	codec      providerCodec
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient selects the wire codec for the configured provider.
func NewClient(cfg config.OracleConfig, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	var codec providerCodec
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		codec = openAICodec{}
	case "anthropic":
		codec = anthropicCodec{}
	default:
		return nil, fmt.Errorf("oracle: unsupported provider %q", cfg.Provider)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		codec:      codec,
		httpClient: httpClient,
		logger:     logging.OrNop(logger),
	}, nil
}

// Model identifies the configured model.
func (c *Client) Model() string { return c.model }

// Complete sends the transcript plus the action catalogue and returns the
// normalized response. Rate-limit and server errors are retried with a short
// exponential backoff inside this single call; anything that still fails is
// one oracle failure as far as the engine's consecutive-failure counter is
// concerned.
func (c *Client) Complete(ctx context.Context, oreq ports.OracleRequest) (*ports.OracleResponse, error) {
	body, err := c.codec.encode(c.model, oreq)
	if err != nil {
		return nil, fmt.Errorf("oracle: encode request: %w", err)
	}

	var resp *ports.OracleResponse
	operation := func() error {
		result, opErr := c.roundTrip(ctx, body)
		if opErr != nil {
			return opErr
		}
		resp = result
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, body []byte) (*ports.OracleResponse, error) {
	endpoint := c.codec.endpoint(c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.codec.headers(httpReq, c.apiKey)

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle: transport: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("oracle: read response: %w", err)
	}
	c.logger.Debug("Oracle call: status=%d bytes=%d elapsed=%s", httpResp.StatusCode, len(data), time.Since(started))

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("oracle: HTTP %d: %s", httpResp.StatusCode, firstLine(data))
	default:
		return nil, backoff.Permanent(fmt.Errorf("oracle: HTTP %d: %s", httpResp.StatusCode, firstLine(data)))
	}

	resp, err := c.codec.decode(data)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("oracle: decode response: %w", err))
	}
	return resp, nil
}

func firstLine(data []byte) string {
	text := strings.TrimSpace(string(data))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
