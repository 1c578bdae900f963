// internal/actuator/client.go
// Package actuator forwards impulses to a remote actuator device over HTTP.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ColonelBlimp/handmorse/internal/morse"
)

// Defaults for the actuator endpoint.
const (
	DefaultURL       = "http://192.168.1.80/morse"
	DefaultTimeout   = 300 * time.Millisecond
	DefaultQueueSize = 8
)

var (
	// ErrInvalidURL indicates the actuator URL is not an absolute http(s) URL
	ErrInvalidURL = errors.New("actuator URL must be an absolute http or https URL")
	// ErrInvalidTimeout indicates the request timeout is not positive
	ErrInvalidTimeout = errors.New("actuator timeout must be positive")
	// ErrStatus indicates the actuator answered with a non-2xx status
	ErrStatus = errors.New("actuator returned non-success status")
)

// Client sends one GET request per impulse: <url>?signal=dot|dash.
type Client struct {
	endpoint   *url.URL
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient validates the endpoint and creates a client.
func NewClient(rawURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	return &Client{
		endpoint: u,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// URL returns the request URL for an impulse.
func (c *Client) URL(imp morse.Impulse) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("signal", imp.String())
	u.RawQuery = q.Encode()
	return u.String()
}

// Send performs a single attempt bounded by the client timeout.
// The response body is discarded.
func (c *Client) Send(ctx context.Context, imp morse.Impulse) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(imp), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", imp, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return nil
}
