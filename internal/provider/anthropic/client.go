package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// APIError represents a non-2xx HTTP response from the endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api error: status %d: %s", e.StatusCode, e.Body)
}

// retriable reports whether err/status should be retried per §4.2: HTTP
// 429/5xx or a transport failure before any bytes of the response arrived.
func retriable(err error, statusCode int) bool {
	if err != nil {
		return true
	}
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Client posts to an Anthropic-Messages-API-shaped endpoint and hands the
// raw response body to the caller for SSE decoding.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient constructs a client. connectTimeout bounds only request setup;
// the idle-data timeout (§5) is enforced by the adapter while reading the
// streamed body, not here.
func NewClient(baseURL, apiKey string, connectTimeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 0, // body streaming is open-ended; idle timeout governs it instead
			Transport: &http.Transport{
				ResponseHeaderTimeout: connectTimeout,
			},
		},
		log: log,
	}
}

// openStream performs the HTTPS POST with exponential-backoff retry
// (base 1s, cap 30s, max 3 attempts) and returns the live response body on
// success. Per §4.2, retries only ever happen before any response body
// byte has been read by the caller, which is exactly what this function
// covers: it returns as soon as headers are in, before decoding begins.
func (c *Client) openStream(ctx context.Context, req wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 30 * time.Second

	operation := func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(), bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			httpReq.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.log.Warn().Err(err).Msg("anthropic transport error, retrying")
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if retriable(nil, resp.StatusCode) {
				c.log.Warn().Int("status", resp.StatusCode).Msg("anthropic retriable status, retrying")
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return resp, nil
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}

func (c *Client) endpointURL() string {
	if strings.HasSuffix(c.baseURL, "/messages") {
		return c.baseURL
	}
	return c.baseURL + "/v1/messages"
}
