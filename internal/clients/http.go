package clients

import (
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

const (
	DefaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 64 << 10
)

// APIError is the single error shape surfaced to pages. StatusCode is zero
// for transport failures.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Retryable reports whether a failed read is worth repeating. Client errors
// other than 408 and 429 are not.
func Retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	code := apiErr.StatusCode
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code == 0 || code >= 500
}

// Message is the text shown to users for an error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An error occurred"
}

type baseClient struct {
	baseURL    string
	httpClient *http.Client
}

func newBaseClient(baseURL string, timeout time.Duration) baseClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return baseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends a request and decodes a 2xx JSON body into out when out is
// non-nil. Every failure is returned as *APIError.
func (c *baseClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			Err:        err,
		}
	}
	return nil
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "request timed out"
		}
		return urlErr.Err.Error()
	}
	return err.Error()
}

// decodeError prefers the backend's detail field, then error, then message.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range []string{"detail", "error", "message"} {
			if msg, ok := payload[field].(string); ok && msg != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: msg}
			}
		}
	}

	msg := http.StatusText(resp.StatusCode)
	if msg == "" {
		msg = "request failed"
	}
	if resp.StatusCode == http.StatusNotFound {
		msg = "not found"
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// Reachable reports whether the backend answers HTTP at all. Any status
// code counts as reachable; only transport failures do not.
func (c *baseClient) Reachable(ctx context.Context) error {
	err := c.do(ctx, http.MethodHead, "/", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return nil
	}
	return err
}
