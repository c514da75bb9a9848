package laoshi

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// AudioKind tags the variants of AudioPayload.
type AudioKind string

const (
	// AudioAbsent means the turn produced no playable audio.
	AudioAbsent AudioKind = "absent"
	// AudioInline carries decoded audio bytes plus a format tag.
	AudioInline AudioKind = "inline"
	// AudioRemote points at a server-hosted audio file.
	AudioRemote AudioKind = "remote"
	// AudioDeferred names a server-side job to poll for the audio.
	AudioDeferred AudioKind = "deferred"
)

// AudioPayload is the normalized audio outcome of a turn or a job poll.
// The wire shape varies (nested audio object vs flat audio_url/audio_base64
// vs a pending job id); normalization happens once at the HTTP boundary so
// the state machine only ever sees this tagged form.
type AudioPayload struct {
	Kind   AudioKind
	Data   []byte // inline only
	Format string // "wav" or "mp3", inline only
	URL    string // remote only
	JobID  string // deferred only
}

// Playable reports whether the payload can be handed to the playback manager.
func (p AudioPayload) Playable() bool {
	return p.Kind == AudioInline || p.Kind == AudioRemote
}

// normalizeTurnAudio collapses the speech-turn response's audio fields into
// one payload. A deferred job takes precedence: the server only sets
// audio_pending when it has not produced audio in this response.
func normalizeTurnAudio(resp *speechTurnResponse) (AudioPayload, error) {
	if resp.AudioPending && resp.AudioJobID != "" {
		return AudioPayload{Kind: AudioDeferred, JobID: resp.AudioJobID}, nil
	}
	if resp.Audio != nil {
		if resp.Audio.URL != "" {
			return AudioPayload{Kind: AudioRemote, URL: resp.Audio.URL}, nil
		}
		if resp.Audio.Base64 != "" {
			return decodeInline(resp.Audio.Base64, resp.Audio.Format)
		}
	}
	if resp.AudioURL != "" {
		return AudioPayload{Kind: AudioRemote, URL: resp.AudioURL}, nil
	}
	if resp.AudioBase64 != "" {
		return decodeInline(resp.AudioBase64, formatFromMime(resp.AudioMime))
	}
	return AudioPayload{Kind: AudioAbsent}, nil
}

// normalizeJobAudio collapses a job-status response the same way.
func normalizeJobAudio(resp *audioJobResponse) (AudioPayload, error) {
	if resp.AudioURL != "" {
		return AudioPayload{Kind: AudioRemote, URL: resp.AudioURL}, nil
	}
	if resp.AudioBase64 != "" {
		return decodeInline(resp.AudioBase64, formatFromMime(resp.AudioMime))
	}
	return AudioPayload{Kind: AudioAbsent}, nil
}

func decodeInline(b64, format string) (AudioPayload, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return AudioPayload{Kind: AudioAbsent}, fmt.Errorf("decode inline audio: %w", err)
	}
	if format == "" {
		format = "wav"
	}
	return AudioPayload{Kind: AudioInline, Data: data, Format: format}, nil
}

func formatFromMime(mime string) string {
	switch mime {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	default:
		return ""
	}
}
