package laoshi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshTokenKey is the durable key holding the rotating refresh token.
const refreshTokenKey = "refresh_token"

const authTimeout = 15 * time.Second

// SessionManager owns the process-wide credential state: exactly one
// in-memory access token, the persisted refresh token, and at most one
// in-flight refresh. No other component reads or writes tokens directly.
type SessionManager struct {
	client     *Client
	store      SecureStore
	cookieAuth bool
	logger     *slog.Logger

	mu          sync.Mutex
	accessToken string

	group singleflight.Group
}

// AccessToken returns the current in-memory access token, or "" when the
// session is anonymous. Never blocks.
func (s *SessionManager) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *SessionManager) setAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// Login exchanges credentials for a token pair. The access token replaces the
// in-memory value; an issued refresh token overwrites the stored one. A 401
// or 403 surfaces as an auth error, any other non-2xx as a server error.
func (s *SessionManager) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var pair TokenPair
	if err := s.client.doJSON(ctx, http.MethodPost, "/auth/login", body, &pair, authTimeout, 0); err != nil {
		return err
	}
	s.install(pair)
	s.logger.Info("session established", "user", username)
	return nil
}

// RefreshSession mints a new access token from the stored refresh token.
// It is idempotent under concurrency: while one refresh is in flight, every
// caller awaits that same outcome instead of issuing a duplicate request.
//
// On failure the access token is cleared and false is returned. The stored
// refresh token is deliberately left in place: a transient server failure
// must not force re-login on the next launch, and Login overwrites the key
// anyway when the user re-authenticates.
func (s *SessionManager) RefreshSession(ctx context.Context) bool {
	v, _, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (s *SessionManager) refresh(ctx context.Context) bool {
	body := map[string]string{}
	if !s.cookieAuth {
		token, err := s.store.Get(refreshTokenKey)
		if err != nil || token == "" {
			s.setAccessToken("")
			return false
		}
		body[refreshTokenKey] = token
	}

	var pair TokenPair
	if err := s.client.doJSON(ctx, http.MethodPost, "/auth/refresh", body, &pair, authTimeout, 0); err != nil {
		s.logger.Warn("session refresh failed", "error", err)
		s.setAccessToken("")
		return false
	}
	s.install(pair)
	s.logger.Debug("session refreshed")
	return true
}

// Logout notifies the server best-effort, then unconditionally clears the
// in-memory access token and deletes the persisted refresh token.
func (s *SessionManager) Logout(ctx context.Context) {
	body := map[string]string{}
	if !s.cookieAuth {
		if token, err := s.store.Get(refreshTokenKey); err == nil && token != "" {
			body[refreshTokenKey] = token
		}
	}
	payload, _ := json.Marshal(body)
	req := apiRequest{
		method:      http.MethodPost,
		path:        "/auth/logout",
		contentType: "application/json",
		body:        payload,
		timeout:     authTimeout,
		bearer:      s.AccessToken(),
	}
	if status, respBody, err := s.client.send(ctx, req); err != nil {
		s.logger.Warn("logout notification failed", "error", err)
	} else if !is2xx(status) {
		s.logger.Warn("logout notification rejected", "error", statusError(status, respBody))
	}
	s.setAccessToken("")
	if err := s.store.Delete(refreshTokenKey); err != nil {
		s.logger.Warn("failed to delete stored refresh token", "error", err)
	}
}

// install replaces the in-memory access token and rotates the stored refresh
// token when one was issued. In cookie-credential mode the transport owns the
// refresh credential, so nothing is persisted.
func (s *SessionManager) install(pair TokenPair) {
	s.setAccessToken(pair.AccessToken)
	if s.cookieAuth || pair.RefreshToken == "" {
		return
	}
	if err := s.store.Set(refreshTokenKey, pair.RefreshToken); err != nil {
		s.logger.Warn("failed to persist refresh token", "error", err)
	}
}
