// Package livecoin is a client for a LiveCoinWatch-shaped market data API.
package livecoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.livecoinwatch.com"
	DefaultTimeout    = 8 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 50 * time.Millisecond

	// maxErrorBody bounds how much of an error body ends up in UpstreamError.
	maxErrorBody = 512

	// maxResponseBody caps how much of a reply is read.
	maxResponseBody = 4 << 20
)

// HTTPClient posts JSON requests to the provider.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	log        *logrus.Entry
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout bounds one FetchJSON call, retries included.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithMaxRetries sets the number of extra attempts after the first.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *HTTPClient) {
		c.log = log
	}
}

// NewHTTPClient creates a client for baseURL authenticated with apiKey.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{},
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log, "livecoin")
	return c
}

// FetchJSON posts params as JSON to endpoint and decodes the reply into out.
// Transport errors, timeouts, 429 and 5xx are retried while the call's
// timeout has not elapsed; other failures are not.
func (c *HTTPClient) FetchJSON(ctx context.Context, endpoint string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordUpstreamRetry(endpoint)
			select {
			case <-ctx.Done():
				return c.classify(ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return c.classify(err)
			}
		}

		start := time.Now()
		err := c.attempt(ctx, endpoint, body, out)
		observability.RecordUpstreamCall(endpoint, time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		lastErr = err
		observability.RecordUpstreamError(endpoint, errorClass(err))

		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"endpoint": endpoint,
			"attempt":  attempt + 1,
		}).Debug("upstream call failed, retrying")
	}

	return lastErr
}

func (c *HTTPClient) attempt(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return c.classify(err)
	}

	if len(respBody) > maxResponseBody {
		return &UpstreamError{Status: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", maxResponseBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &UpstreamError{Status: resp.StatusCode, Message: "malformed json: " + err.Error()}
	}
	return nil
}

// classify maps deadline errors onto ErrUpstreamTimeout.
func (c *HTTPClient) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("http request: %w", err)
}

func retryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func errorClass(err error) string {
	var ue *UpstreamError
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.As(err, &ue):
		if strings.HasPrefix(ue.Message, "malformed json") {
			return "malformed"
		}
		return fmt.Sprintf("%dxx", ue.Status/100)
	default:
		return "transport"
	}
}
