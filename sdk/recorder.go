package laoshi

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Recorder opens microphone capture sessions. At most one session is active
// at a time; the state machine tears down any previous session before
// starting a new one.
type Recorder interface {
	// RequestPermission reports whether microphone access is available.
	// A denial is returned as a permission_denied error.
	RequestPermission(ctx context.Context) error
	// Start opens a capture session.
	Start(ctx context.Context) (CaptureSession, error)
}

// CaptureSession is one in-progress recording.
type CaptureSession interface {
	// Stop ends capture and returns the utterance as a WAV blob.
	Stop() ([]byte, error)
	// Abort ends capture and discards the data.
	Abort()
}

const (
	captureSampleRate = 16000
	captureChannels   = 1
)

// MalgoRecorder captures microphone audio as 16 kHz mono 16-bit PCM.
type MalgoRecorder struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoRecorder creates a recorder. The underlying audio context is
// initialized lazily on first use, which is also where the OS permission
// prompt fires.
func NewMalgoRecorder() *MalgoRecorder {
	return &MalgoRecorder{}
}

// RequestPermission initializes the audio context. Failure to acquire the
// capture backend maps to permission_denied: on mobile and desktop alike it
// means the OS did not grant microphone access.
func (r *MalgoRecorder) RequestPermission(_ context.Context) error {
	_, err := r.context()
	return err
}

func (r *MalgoRecorder) context() (*malgo.AllocatedContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return r.ctx, nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, NewPermissionDeniedError(fmt.Sprintf("microphone unavailable: %v", err))
	}
	r.ctx = ctx
	return ctx, nil
}

// Start opens the capture device and begins buffering samples.
func (r *MalgoRecorder) Start(_ context.Context) (CaptureSession, error) {
	mctx, err := r.context()
	if err != nil {
		return nil, err
	}

	s := &malgoSession{}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = captureChannels
	cfg.SampleRate = captureSampleRate
	cfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			s.mu.Lock()
			s.buf = append(s.buf, input...)
			s.mu.Unlock()
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	s.device = device
	return s, nil
}

// Close releases the audio context.
func (r *MalgoRecorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		_ = r.ctx.Uninit()
		r.ctx = nil
	}
}

type malgoSession struct {
	mu     sync.Mutex
	buf    []byte
	device *malgo.Device
}

func (s *malgoSession) Stop() ([]byte, error) {
	s.teardown()

	s.mu.Lock()
	pcm := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(pcm) == 0 {
		return nil, fmt.Errorf("capture produced no audio")
	}
	return encodeWAV(pcm, captureSampleRate, captureChannels), nil
}

func (s *malgoSession) Abort() {
	s.teardown()
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
}

func (s *malgoSession) teardown() {
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
}
