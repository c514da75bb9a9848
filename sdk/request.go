package laoshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	clientMarkerHeader = "X-Laoshi-Client"
	clientMarkerValue  = "go-sdk"
)

// apiRequest is one logical call to the tutor API. The body is kept as bytes
// so an attempt can be replayed after a timeout retry or a 401 refresh.
type apiRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
	timeout     time.Duration
	retries     int

	// bearer is the access token for this call, if any. authedSend refills it
	// after a refresh.
	bearer string
}

func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.baseURL, "/") + path
}

// send issues the request with a hard per-attempt deadline. An attempt that
// hits its deadline is retried after a fixed backoff while budget remains;
// exhausting the budget yields a TimeoutError. Cancellation of the caller's
// context yields an AbortError, and every other transport failure propagates
// immediately as a TransportError.
func (c *Client) send(ctx context.Context, req apiRequest) (int, []byte, error) {
	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.requestTimeout
	}

	attempt := 0
	for {
		status, body, err := c.attempt(ctx, req, timeout)
		if err == nil {
			return status, body, nil
		}

		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.IsRetryable() && attempt < req.retries && ctx.Err() == nil {
			c.logger.Debug("request timed out, retrying",
				"path", req.path, "attempt", attempt+1, "backoff", c.retryBackoff)
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return 0, nil, NewAbortError("request canceled during backoff", ctx.Err())
			}
			attempt++
			continue
		}
		return 0, nil, err
	}
}

func (c *Client) attempt(ctx context.Context, req apiRequest, timeout time.Duration) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, c.apiURL(req.path), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set(clientMarkerHeader, clientMarkerValue)
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, c.classifyAttemptError(ctx, req, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, c.classifyAttemptError(ctx, req, err)
	}
	return resp.StatusCode, respBody, nil
}

// classifyAttemptError splits attempt failures by cause: the caller's
// cancellation wins over everything, a per-attempt deadline becomes a
// retryable TimeoutError, and the rest is transport-level.
func (c *Client) classifyAttemptError(ctx context.Context, req apiRequest, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return NewAbortError("request canceled", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(fmt.Sprintf("%s %s exceeded deadline", req.method, req.path), context.DeadlineExceeded)
	}
	if errors.Is(err, context.Canceled) {
		return NewAbortError("request canceled", context.Canceled)
	}
	return &TransportError{Op: req.method, URL: c.apiURL(req.path), Err: err}
}

// doJSON issues an unauthenticated JSON call and decodes a 2xx response into
// out. Non-2xx statuses map to the canonical error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, timeout time.Duration, retries int) error {
	req := apiRequest{method: method, path: path, timeout: timeout, retries: retries}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.body = payload
		req.contentType = "application/json"
	}

	status, respBody, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if !is2xx(status) {
		return statusError(status, respBody)
	}
	return decodeBody(respBody, out)
}

// authedSend attaches the current access token and, on the first 401,
// triggers exactly one session refresh and replays the request once with the
// new token. A second 401 or a failed refresh surfaces as an auth error; no
// further loop, so a revoked session can never retry indefinitely.
func (c *Client) authedSend(ctx context.Context, req apiRequest) (int, []byte, error) {
	req.bearer = c.Session.AccessToken()

	status, body, err := c.send(ctx, req)
	if err != nil || status != http.StatusUnauthorized {
		return status, body, err
	}

	if !c.Session.RefreshSession(ctx) {
		return status, body, NewAuthError("session expired")
	}
	req.bearer = c.Session.AccessToken()
	return c.send(ctx, req)
}

// authedJSON is doJSON plus bearer auth and the 401 refresh-and-replay.
func (c *Client) authedJSON(ctx context.Context, method, path string, body, out any, timeout time.Duration, retries int) error {
	req := apiRequest{method: method, path: path, timeout: timeout, retries: retries}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.body = payload
		req.contentType = "application/json"
	}

	status, respBody, err := c.authedSend(ctx, req)
	if err != nil {
		return err
	}
	if !is2xx(status) {
		return statusError(status, respBody)
	}
	return decodeBody(respBody, out)
}

func decodeBody(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func is2xx(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// statusError maps a non-2xx response to the taxonomy. The tutor API reports
// failures as {"detail": "..."}; an unparseable body falls back to the raw
// text.
func statusError(status int, body []byte) error {
	message := errorDetail(body)
	if message == "" {
		message = fmt.Sprintf("request failed (%d)", status)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Type: ErrAuth, Message: message, Status: status}
	default:
		return NewServerError(status, message)
	}
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}
