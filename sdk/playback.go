package laoshi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AudioBackend loads a playable resource from a URI (http(s) URL or local
// file path). Implementations must support wav and mp3.
type AudioBackend interface {
	Load(ctx context.Context, uri string) (PlayerResource, error)
}

// PlayerResource is one loaded audio resource.
type PlayerResource interface {
	Play() error
	Unload() error
}

// PlaybackManager owns the single active playback resource. Play unloads the
// current resource before loading the new one, under one lock, so no two
// resources are ever concurrently loaded and a load is never interrupted by
// a second Play.
type PlaybackManager struct {
	mu      sync.Mutex
	backend AudioBackend
	current PlayerResource

	cacheDir string
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewPlaybackManager creates a manager over the given backend. Inline audio
// is written to temp files under the user cache dir; files older than the
// TTL are swept when new audio is cached, mirroring the server's own
// audio-dir cleanup.
func NewPlaybackManager(backend AudioBackend, logger *slog.Logger) *PlaybackManager {
	if logger == nil {
		logger = slog.Default()
	}
	dir := os.TempDir()
	if cache, err := os.UserCacheDir(); err == nil {
		dir = filepath.Join(cache, "laoshi", "audio")
	}
	return &PlaybackManager{
		backend:  backend,
		cacheDir: dir,
		cacheTTL: 15 * time.Minute,
		logger:   logger,
	}
}

// Play resolves the payload to a single playable resource, unloads any
// currently loaded resource, loads the new one and starts playback.
func (m *PlaybackManager) Play(ctx context.Context, payload AudioPayload) error {
	uri, err := m.resolve(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.Unload(); err != nil {
			m.logger.Warn("failed to unload previous audio", "error", err)
		}
		m.current = nil
	}

	res, err := m.backend.Load(ctx, uri)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}
	m.current = res
	return res.Play()
}

// Dispose unloads the current resource. Invoked on teardown; safe to call
// more than once.
func (m *PlaybackManager) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.Unload()
	m.current = nil
	return err
}

// resolve turns a payload into a URI the backend can load. Remote URLs pass
// through; inline bytes are written to a cache file first.
func (m *PlaybackManager) resolve(payload AudioPayload) (string, error) {
	switch payload.Kind {
	case AudioRemote:
		return payload.URL, nil
	case AudioInline:
		return m.cacheInline(payload)
	case AudioDeferred:
		return "", fmt.Errorf("deferred audio must be resolved before playback")
	default:
		return "", NewAudioUnavailableError("no playable audio in this turn")
	}
}

func (m *PlaybackManager) cacheInline(payload AudioPayload) (string, error) {
	if err := os.MkdirAll(m.cacheDir, 0o700); err != nil {
		return "", fmt.Errorf("create audio cache dir: %w", err)
	}
	m.sweepCache()

	path := filepath.Join(m.cacheDir, uuid.NewString()+"."+payload.Format)
	if err := os.WriteFile(path, payload.Data, 0o600); err != nil {
		return "", fmt.Errorf("write audio cache file: %w", err)
	}
	return path, nil
}

func (m *PlaybackManager) sweepCache() {
	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-m.cacheTTL)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.cacheDir, entry.Name())); err != nil {
			m.logger.Debug("audio cache sweep skipped file", "file", entry.Name(), "error", err)
		}
	}
}
