package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds transparent retries on transient upstream failures.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
}

// DefaultRetryPolicy matches the Seller API guidance: 3 attempts, 200ms base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 200 * time.Millisecond}
}

// StatusError carries a non-2xx response so typed clients can classify it.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, string(e.Body))
}

// retryable reports whether the request may transparently be reissued:
// 429, any 5xx, or a network timeout.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// BaseClient is the transport shared by typed API clients: base URL, default
// headers, per-request timeout and bounded retries.
type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	retries RetryPolicy
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
		retries: DefaultRetryPolicy(),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) SetRetryPolicy(p RetryPolicy) {
	c.retries = p
}

// MakeRequest issues one HTTP call with retries. The body is buffered so every
// attempt re-sends it from the start. Cancellation aborts in-flight attempts
// and the backoff sleeps between them.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var response []byte
	err := retry.Do(
		func() error {
			resp, err := c.do(ctx, method, endpoint, body)
			if err != nil {
				return err
			}
			response = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries.Attempts),
		retry.Delay(c.retries.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Err(err).
				Uint("attempt", n+1).
				Str("endpoint", endpoint).
				Msg("retrying request")
		}),
	)
	return response, err
}

func (c *BaseClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: responseBody}
	}
	return responseBody, nil
}

// Post issues a POST with a pre-marshalled JSON body.
func (c *BaseClient) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}
