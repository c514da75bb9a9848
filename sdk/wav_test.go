package laoshi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAV_RoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	encoded := encodeWAV(pcm, 16000, 1)

	if len(encoded) != wavHeaderSize+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), wavHeaderSize+len(pcm))
	}

	got, rate, channels, err := decodeWAV(encoded)
	if err != nil {
		t.Fatalf("decodeWAV() error = %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("rate=%d channels=%d, want 16000/1", rate, channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_SkipsMetadataChunks(t *testing.T) {
	pcm := []byte{0x10, 0x20}
	encoded := encodeWAV(pcm, 24000, 1)

	// Splice a LIST chunk between fmt and data, as some encoders emit.
	list := make([]byte, 8+4)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 4)
	copy(list[8:], "INFO")

	spliced := append(append(append([]byte{}, encoded[:36]...), list...), encoded[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	got, rate, _, err := decodeWAV(spliced)
	if err != nil {
		t.Fatalf("decodeWAV() error = %v", err)
	}
	if rate != 24000 || !bytes.Equal(got, pcm) {
		t.Errorf("decoded rate=%d pcm=%v", rate, got)
	}
}

func TestDecodeWAV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not riff", []byte("OggS this is not wav at all")},
		{"truncated header", []byte("RIFF")},
		{"missing data chunk", encodeWAV(nil, 16000, 1)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := decodeWAV(tt.data); err == nil {
				t.Error("decodeWAV() error = nil, want failure")
			}
		})
	}
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	encoded := encodeWAV([]byte{1, 2}, 16000, 1)
	binary.LittleEndian.PutUint16(encoded[20:22], 3) // IEEE float
	if _, _, _, err := decodeWAV(encoded); err == nil {
		t.Error("decodeWAV() error = nil, want unsupported encoding")
	}
}
