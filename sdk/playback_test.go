package laoshi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestPlayback(t *testing.T) (*PlaybackManager, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	m := NewPlaybackManager(backend, nil)
	m.cacheDir = t.TempDir()
	return m, backend
}

func TestPlayback_UnloadsPreviousBeforeLoading(t *testing.T) {
	m, backend := newTestPlayback(t)
	ctx := context.Background()

	if err := m.Play(ctx, AudioPayload{Kind: AudioRemote, URL: "https://cdn.example.com/a.mp3"}); err != nil {
		t.Fatalf("Play(a) error = %v", err)
	}
	if err := m.Play(ctx, AudioPayload{Kind: AudioRemote, URL: "https://cdn.example.com/b.mp3"}); err != nil {
		t.Fatalf("Play(b) error = %v", err)
	}

	if loads := backend.loaded(); len(loads) != 2 {
		t.Fatalf("loads = %v, want 2", loads)
	}
	first, second := backend.resources[0], backend.resources[1]
	if !first.played || !first.unloaded {
		t.Errorf("first resource played=%v unloaded=%v, want both", first.played, first.unloaded)
	}
	if !second.played || second.unloaded {
		t.Errorf("second resource played=%v unloaded=%v, want played and still loaded", second.played, second.unloaded)
	}
}

func TestPlayback_InlineAudioWrittenToCache(t *testing.T) {
	m, backend := newTestPlayback(t)

	data := encodeWAV(make([]byte, 480), 24000, 1)
	err := m.Play(context.Background(), AudioPayload{Kind: AudioInline, Data: data, Format: "wav"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	loads := backend.loaded()
	if len(loads) != 1 {
		t.Fatalf("loads = %v, want 1", loads)
	}
	if filepath.Ext(loads[0]) != ".wav" {
		t.Errorf("cache file = %q, want .wav extension", loads[0])
	}
	got, err := os.ReadFile(loads[0])
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	if string(got) != string(data) {
		t.Error("cache file content differs from inline payload")
	}
}

func TestPlayback_CacheSweepRemovesExpired(t *testing.T) {
	m, _ := newTestPlayback(t)

	stale := filepath.Join(m.cacheDir, "stale.mp3")
	if err := os.WriteFile(stale, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(m.cacheDir, "fresh.mp3")
	if err := os.WriteFile(fresh, []byte("new"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := m.Play(context.Background(), AudioPayload{
		Kind: AudioInline, Data: []byte("audio"), Format: "mp3",
	})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expired cache file should be swept")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh cache file should survive the sweep: %v", err)
	}
}

func TestPlayback_RejectsDeferredPayload(t *testing.T) {
	m, backend := newTestPlayback(t)

	err := m.Play(context.Background(), AudioPayload{Kind: AudioDeferred, JobID: "job-1"})
	if err == nil {
		t.Fatal("Play(deferred) error = nil, want rejection")
	}
	if len(backend.loaded()) != 0 {
		t.Error("deferred payload must not reach the backend")
	}
}

func TestPlayback_AbsentPayloadIsAudioUnavailable(t *testing.T) {
	m, _ := newTestPlayback(t)

	err := m.Play(context.Background(), AudioPayload{Kind: AudioAbsent})

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Type != ErrAudioUnavailable {
		t.Fatalf("Play(absent) error = %v, want audio_unavailable", err)
	}
}

func TestPlayback_DisposeIsIdempotent(t *testing.T) {
	m, backend := newTestPlayback(t)

	if err := m.Play(context.Background(), AudioPayload{Kind: AudioRemote, URL: "https://cdn.example.com/a.mp3"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := m.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if err := m.Dispose(); err != nil {
		t.Fatalf("second Dispose() error = %v", err)
	}
	if !backend.resources[0].unloaded {
		t.Error("Dispose should unload the current resource")
	}
}
