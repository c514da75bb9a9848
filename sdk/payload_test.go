package laoshi

import (
	"encoding/base64"
	"testing"
)

func TestNormalizeTurnAudio(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("pcm"))
	tests := []struct {
		name string
		resp speechTurnResponse
		want AudioPayload
	}{
		{
			name: "deferred job wins over everything",
			resp: speechTurnResponse{
				AudioPending: true,
				AudioJobID:   "job-1",
				AudioURL:     "https://cdn.example.com/a.mp3",
			},
			want: AudioPayload{Kind: AudioDeferred, JobID: "job-1"},
		},
		{
			name: "nested audio url",
			resp: speechTurnResponse{Audio: &wireAudio{Format: "mp3", URL: "https://cdn.example.com/a.mp3"}},
			want: AudioPayload{Kind: AudioRemote, URL: "https://cdn.example.com/a.mp3"},
		},
		{
			name: "nested audio base64",
			resp: speechTurnResponse{Audio: &wireAudio{Format: "mp3", Base64: b64}},
			want: AudioPayload{Kind: AudioInline, Data: []byte("pcm"), Format: "mp3"},
		},
		{
			name: "flat audio url",
			resp: speechTurnResponse{AudioURL: "https://cdn.example.com/b.mp3"},
			want: AudioPayload{Kind: AudioRemote, URL: "https://cdn.example.com/b.mp3"},
		},
		{
			name: "flat base64 with mime",
			resp: speechTurnResponse{AudioBase64: b64, AudioMime: "audio/mpeg"},
			want: AudioPayload{Kind: AudioInline, Data: []byte("pcm"), Format: "mp3"},
		},
		{
			name: "flat base64 defaults to wav",
			resp: speechTurnResponse{AudioBase64: b64},
			want: AudioPayload{Kind: AudioInline, Data: []byte("pcm"), Format: "wav"},
		},
		{
			name: "pending flag without job id is not deferred",
			resp: speechTurnResponse{AudioPending: true},
			want: AudioPayload{Kind: AudioAbsent},
		},
		{
			name: "no audio fields",
			resp: speechTurnResponse{Transcript: "hello"},
			want: AudioPayload{Kind: AudioAbsent},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeTurnAudio(&tt.resp)
			if err != nil {
				t.Fatalf("normalizeTurnAudio() error = %v", err)
			}
			if got.Kind != tt.want.Kind || got.URL != tt.want.URL ||
				got.JobID != tt.want.JobID || got.Format != tt.want.Format ||
				string(got.Data) != string(tt.want.Data) {
				t.Errorf("normalizeTurnAudio() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTurnAudio_BadBase64(t *testing.T) {
	resp := speechTurnResponse{AudioBase64: "%%%"}
	if _, err := normalizeTurnAudio(&resp); err == nil {
		t.Fatal("normalizeTurnAudio() error = nil, want decode failure")
	}
}

func TestAudioPayload_Playable(t *testing.T) {
	if !(AudioPayload{Kind: AudioInline}).Playable() {
		t.Error("inline payload should be playable")
	}
	if !(AudioPayload{Kind: AudioRemote}).Playable() {
		t.Error("remote payload should be playable")
	}
	if (AudioPayload{Kind: AudioDeferred}).Playable() {
		t.Error("deferred payload is not playable until resolved")
	}
	if (AudioPayload{Kind: AudioAbsent}).Playable() {
		t.Error("absent payload is not playable")
	}
}
