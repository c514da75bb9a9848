package laoshi

import (
	"log/slog"
	"net/http"
	"time"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL of the tutor API.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for the client. Token values are never logged.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSecureStore sets the durable key/value store holding the refresh token
// and cached preferences.
func WithSecureStore(store SecureStore) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithCookieCredentials switches auth calls to ambient cookie-based
// credentials: login/refresh/logout send empty bodies and the refresh token
// is never persisted client-side. The supplied HTTP client must carry a
// cookie jar. This is a property of the execution context, decided once at
// construction, not per call.
func WithCookieCredentials() ClientOption {
	return func(c *Client) {
		c.cookieAuth = true
	}
}

// WithRequestTimeout sets the default per-attempt deadline for calls that do
// not specify their own (speech-turn uploads do).
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithRetryBackoff sets the fixed interval between timeout retries.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}
