// Package ocr is the HTTP client for the OCR service. Connectivity and
// deadline problems surface as taxonomy failures so the execution boundary
// can classify them; the client never retries on its own.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the OCR service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// recognizeResponse is the service's wire shape.
type recognizeResponse struct {
	Text string `json:"text"`
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ocr client requires a base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid ocr url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// URL returns the service base URL.
func (c *Client) URL() string { return c.baseURL }

// Recognize submits image bytes and returns the recognized text. A deadline
// overrun comes back as ErrTimeout-style context carrying the elapsed time;
// any other transport problem as a connectivity error. Both are wrapped into
// taxonomy failures by the caller-facing helpers below.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	endpoint := c.baseURL + "/v1/recognize"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{Elapsed: time.Since(started), Cause: err}
		}
		return "", &ConnectionError{URL: c.baseURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &ConnectionError{
			URL:   c.baseURL,
			Cause: fmt.Errorf("ocr service returned %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ConnectionError{URL: c.baseURL, Cause: fmt.Errorf("decode recognize response: %w", err)}
	}
	return out.Text, nil
}

// TimeoutError reports an OCR request that exceeded its deadline.
type TimeoutError struct {
	Elapsed time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ocr request timed out after %s: %v", e.Elapsed, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ConnectionError reports a transport-level problem reaching the service.
type ConnectionError struct {
	URL   string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ocr service %s unreachable: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
