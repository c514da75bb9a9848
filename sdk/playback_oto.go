package laoshi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// OtoBackend plays wav and mp3 resources through the system audio device.
// oto allows one audio context per process with a fixed sample format, so
// the context is initialized from the first loaded resource; later resources
// must match (the tutor TTS emits a single fixed format, so in practice they
// do).
type OtoBackend struct {
	httpClient *http.Client

	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// NewOtoBackend creates the production audio backend. httpClient fetches
// remote audio URLs; nil uses a default client.
func NewOtoBackend(httpClient *http.Client) *OtoBackend {
	if httpClient == nil {
		httpClient = newDefaultHTTPClient()
	}
	return &OtoBackend{httpClient: httpClient}
}

// Load fetches and decodes the resource and prepares an oto player for it.
func (b *OtoBackend) Load(ctx context.Context, uri string) (PlayerResource, error) {
	raw, err := b.fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	pcm, sampleRate, channels, err := decodeAudio(raw, uri)
	if err != nil {
		return nil, err
	}

	otoCtx, err := b.context(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	return &otoResource{player: player}, nil
}

func (b *OtoBackend) fetch(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("read audio file: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, URL: uri, Err: err}
	}
	defer resp.Body.Close()
	if !is2xx(resp.StatusCode) {
		return nil, NewServerError(resp.StatusCode, "audio fetch failed")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio response: %w", err)
	}
	return data, nil
}

func (b *OtoBackend) context(sampleRate, channels int) (*oto.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		if sampleRate != b.sampleRate || channels != b.channels {
			return nil, fmt.Errorf("audio device initialized at %d Hz/%d ch, resource is %d Hz/%d ch",
				b.sampleRate, b.channels, sampleRate, channels)
		}
		return b.ctx, nil
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("init audio device: %w", err)
	}
	<-ready

	b.ctx = otoCtx
	b.sampleRate = sampleRate
	b.channels = channels
	return otoCtx, nil
}

// decodeAudio sniffs the container and returns interleaved 16-bit PCM.
func decodeAudio(raw []byte, uri string) (pcm []byte, sampleRate, channels int, err error) {
	switch {
	case len(raw) >= 4 && string(raw[0:4]) == "RIFF":
		return decodeWAV(raw)
	case looksLikeMP3(raw, uri):
		decoder, err := mp3.NewDecoder(bytes.NewReader(raw))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode mp3: %w", err)
		}
		pcm, err := io.ReadAll(decoder)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode mp3: %w", err)
		}
		// go-mp3 always emits 16-bit stereo.
		return pcm, decoder.SampleRate(), 2, nil
	default:
		return nil, 0, 0, fmt.Errorf("unrecognized audio container")
	}
}

func looksLikeMP3(raw []byte, uri string) bool {
	if strings.HasSuffix(strings.ToLower(strings.Split(uri, "?")[0]), ".mp3") {
		return true
	}
	if len(raw) >= 3 && string(raw[0:3]) == "ID3" {
		return true
	}
	return len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0
}

type otoResource struct {
	player *oto.Player
}

func (r *otoResource) Play() error {
	r.player.Play()
	return nil
}

func (r *otoResource) Unload() error {
	return r.player.Close()
}
