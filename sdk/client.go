// Package laoshi provides the Go client SDK for the Chinese Tutor API.
//
// The SDK centers on the resilience layer around the network boundary: a
// session manager keeping exactly one valid access credential live under
// concurrent callers, a request executor enforcing timeouts, bounded retries
// and cancellation, a voice-turn state machine coordinating capture, upload,
// deferred audio jobs and playback, and a playback manager owning the single
// active audio resource.
package laoshi

import (
	"log/slog"
	"net/http"
	"time"
)

// Client is the main entry point for the SDK.
type Client struct {
	Chat    *ChatService
	Speech  *SpeechService
	Session *SessionManager

	// Internal
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	store          SecureStore
	cookieAuth     bool
	requestTimeout time.Duration
	retryBackoff   time.Duration
}

// NewClient creates a new client. The base URL is externally configured; the
// default secure store is in-memory, so production callers should supply a
// durable one via WithSecureStore.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     newDefaultHTTPClient(),
		logger:         slog.Default(),
		store:          NewMemoryStore(),
		requestTimeout: 15 * time.Second,
		retryBackoff:   time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Session = &SessionManager{
		client:     c,
		store:      c.store,
		cookieAuth: c.cookieAuth,
		logger:     c.logger,
	}
	c.Chat = &ChatService{client: c}
	c.Speech = &SpeechService{client: c}
	return c
}

// Store returns the configured secure store, for callers that layer
// preferences on top of it.
func (c *Client) Store() SecureStore {
	return c.store
}
