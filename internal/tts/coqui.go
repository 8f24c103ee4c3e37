package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Static errors for Coqui client operations.
var (
	// ErrBaseURLRequired is returned when the server URL is not provided.
	ErrBaseURLRequired = errors.New("coqui: base URL is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("coqui: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("coqui: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("coqui: request failed")
	// ErrEmptyAudio is returned when the server answers with an empty body.
	ErrEmptyAudio = errors.New("coqui: empty audio response")
)

// CoquiClient synthesizes speech through the HTTP API of a Coqui TTS server
// (`tts-server`). The model is chosen when the server starts; the voice maps
// to the server's speaker_id.
type CoquiClient struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

// CoquiOption is a function that configures a CoquiClient.
type CoquiOption func(*CoquiClient)

// DefaultTimeout bounds a single synthesis request unless overridden.
const DefaultTimeout = 5 * time.Minute

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(c *http.Client) CoquiOption {
	return func(cc *CoquiClient) {
		if c != nil {
			cc.httpClient = c
		}
	}
}

// WithTimeout sets the timeout of a single synthesis request. It applies to
// the HTTP client in use after all options, including WithHTTPClient.
func WithTimeout(d time.Duration) CoquiOption {
	return func(cc *CoquiClient) {
		if d > 0 {
			cc.timeout = d
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) CoquiOption {
	return func(cc *CoquiClient) {
		if n >= 0 {
			cc.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) CoquiOption {
	return func(cc *CoquiClient) {
		cc.baseBackoff = d
	}
}

// WithRateLimit caps the number of requests per second sent to the server.
// Zero or a negative value disables limiting.
func WithRateLimit(perSecond float64) CoquiOption {
	return func(cc *CoquiClient) {
		if perSecond > 0 {
			cc.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			cc.limiter = nil
		}
	}
}

// NewCoquiClient creates a new Coqui TTS client for the server at baseURL.
// By default a failed request is not retried.
func NewCoquiClient(baseURL string, opts ...CoquiOption) (*CoquiClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &CoquiClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		maxRetries:  0,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c, nil
}

// Synthesize requests speech for text from the server and writes the WAV
// response to outputPath.
func (c *CoquiClient) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	q := url.Values{}
	q.Set("text", text)
	if voice != "" {
		q.Set("speaker_id", voice)
	}
	endpoint := fmt.Sprintf("%s/api/tts?%s", c.baseURL, q.Encode())

	audio, err := c.doRequestWithRetry(ctx, endpoint)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	if err := writeAudio(outputPath, audio); err != nil {
		return fmt.Errorf("coqui: write audio: %w", err)
	}
	return nil
}

// doRequestWithRetry performs the request with exponential backoff retry.
func (c *CoquiClient) doRequestWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("coqui: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("coqui: rate limiter: %w", err)
			}
		}

		body, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return body, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
	}

	if c.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("coqui: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request and returns the response body.
func (c *CoquiClient) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("coqui: request cancelled: %w", ctx.Err())
		}
		return nil, &retryableError{err: fmt.Errorf("coqui: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("coqui: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return nil, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, truncate(body))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, truncate(body))}
		}
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, truncate(body))
	}

	return body, nil
}

// truncate keeps error messages readable when a server returns a large body.
func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that CoquiClient implements Synthesizer.
var _ Synthesizer = (*CoquiClient)(nil)
