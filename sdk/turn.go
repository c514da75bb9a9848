package laoshi

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// TurnState is the single explicit state of the voice-turn machine. One
// enumerated state plus a payload replaces the tangle of boolean flags a
// naive client grows, so illegal combinations (recording while uploading)
// cannot be represented.
type TurnState string

const (
	StateIdle                 TurnState = "idle"
	StateRequestingPermission TurnState = "requesting_permission"
	StateRecording            TurnState = "recording"
	StateUploading            TurnState = "uploading"
	StateSyncResult           TurnState = "sync_result"
	StatePendingAudio         TurnState = "pending_audio"
	StatePolling              TurnState = "polling"
	StatePlaying              TurnState = "playing"
	StateError                TurnState = "error"
)

// TurnConfig is the fixed metadata sent with every voice turn, plus knobs
// for the deferred-audio poll loop.
type TurnConfig struct {
	SourceLang string
	TargetLang string
	Scenario   string
	Level      Level

	// PollInterval and PollAttempts bound the deferred-audio loop.
	// Zero values mean 1 s and 10 attempts.
	PollInterval time.Duration
	PollAttempts int

	// OnState observes every state transition, in order.
	OnState func(TurnState)
}

// TurnMachine drives one voice turn at a time through
// permission → record → upload → (sync result | polled job) → playback.
// Failures surface as transient typed errors and the machine always returns
// to Idle, so the user can immediately retry.
type TurnMachine struct {
	client   *Client
	recorder Recorder
	playback *PlaybackManager
	cfg      TurnConfig
	logger   *slog.Logger

	mu      sync.Mutex
	state   TurnState
	capture CaptureSession
	result  *TurnResult
	lastErr *Error
}

// NewTurnMachine creates a machine in the Idle state.
func NewTurnMachine(client *Client, recorder Recorder, playback *PlaybackManager, cfg TurnConfig) *TurnMachine {
	return &TurnMachine{
		client:   client,
		recorder: recorder,
		playback: playback,
		cfg:      cfg,
		logger:   client.logger,
		state:    StateIdle,
	}
}

// State returns the current state.
func (m *TurnMachine) State() TurnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Result returns the text result of the most recent turn, if any. It is
// retained even when audio resolution failed: text and audio success are
// independent outcomes.
func (m *TurnMachine) Result() *TurnResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// LastError returns the transient error from the most recent failed turn.
func (m *TurnMachine) LastError() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// PressIn starts a recording gesture: request microphone permission if
// needed, then open a capture session. It is a no-op while a turn is already
// recording or uploading; there is no queueing, only rejection.
func (m *TurnMachine) PressIn(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateRecording, StateUploading, StatePolling, StatePendingAudio:
		m.mu.Unlock()
		return nil
	}
	m.result = nil
	m.lastErr = nil
	m.mu.Unlock()

	m.setState(StateRequestingPermission)
	if err := m.recorder.RequestPermission(ctx); err != nil {
		return m.fail(asError(err, ErrPermissionDenied))
	}

	// Exactly one capture session: tear down any leftover before starting.
	m.mu.Lock()
	if m.capture != nil {
		m.capture.Abort()
		m.capture = nil
	}
	m.mu.Unlock()

	session, err := m.recorder.Start(ctx)
	if err != nil {
		return m.fail(asError(err, ErrPermissionDenied))
	}

	m.mu.Lock()
	m.capture = session
	m.mu.Unlock()
	m.setState(StateRecording)
	return nil
}

// PressOut ends the gesture: stop capture, upload the utterance, then
// resolve audio synchronously or through the polled job, and hand the
// playable payload to the playback manager. A press-out while not recording
// is a no-op.
func (m *TurnMachine) PressOut(ctx context.Context) (*TurnResult, error) {
	m.mu.Lock()
	if m.state != StateRecording || m.capture == nil {
		m.mu.Unlock()
		return nil, nil
	}
	session := m.capture
	m.capture = nil
	m.mu.Unlock()

	audio, err := session.Stop()
	if err != nil {
		return nil, m.fail(asError(err, ErrServer))
	}

	m.setState(StateUploading)
	result, payload, err := m.client.Speech.SubmitTurn(ctx, &TurnUpload{
		Audio:      audio,
		SourceLang: m.cfg.SourceLang,
		TargetLang: m.cfg.TargetLang,
		Scenario:   m.cfg.Scenario,
		Level:      m.cfg.Level,
	})
	if result != nil {
		m.mu.Lock()
		m.result = result
		m.mu.Unlock()
	}
	if err != nil {
		return m.Result(), m.fail(asError(err, ErrServer))
	}

	switch payload.Kind {
	case AudioInline, AudioRemote:
		m.setState(StateSyncResult)
	case AudioDeferred:
		m.setState(StatePendingAudio)
		m.setState(StatePolling)
		payload, err = m.client.Speech.AwaitAudio(ctx, payload.JobID, m.cfg.PollInterval, m.cfg.PollAttempts)
		if err != nil {
			return m.Result(), m.fail(asError(err, ErrServer))
		}
	case AudioAbsent:
		if result != nil && result.TTSError != "" {
			return m.Result(), m.fail(NewServerError(0, result.TTSError))
		}
		return m.Result(), m.fail(NewAudioUnavailableError("turn produced no audio"))
	}

	if err := m.playback.Play(ctx, payload); err != nil {
		return m.Result(), m.fail(asError(err, ErrServer))
	}
	m.setState(StatePlaying)
	m.setState(StateIdle)
	return m.Result(), nil
}

// Cancel aborts any active capture and playback without surfacing an error:
// the scoped-release path for leaving the screen mid-turn.
func (m *TurnMachine) Cancel() {
	m.mu.Lock()
	session := m.capture
	m.capture = nil
	m.mu.Unlock()
	if session != nil {
		session.Abort()
	}
	if err := m.playback.Dispose(); err != nil {
		m.logger.Warn("failed to dispose playback", "error", err)
	}
	m.setState(StateIdle)
}

// Close releases capture and playback resources on teardown.
func (m *TurnMachine) Close() {
	m.Cancel()
}

func (m *TurnMachine) setState(next TurnState) {
	m.mu.Lock()
	m.state = next
	cb := m.cfg.OnState
	m.mu.Unlock()
	if cb != nil {
		cb(next)
	}
}

// fail records the error, surfaces the Error state, and auto-returns to
// Idle: errors are transient banners, not modal blockers.
func (m *TurnMachine) fail(err *Error) error {
	m.logger.Warn("voice turn failed", "type", err.Type, "error", err.Message)
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.setState(StateError)
	m.setState(StateIdle)
	return err
}

// asError coerces any failure into the canonical taxonomy, defaulting to the
// given type for untyped errors.
func asError(err error, fallback ErrorType) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return &Error{Type: ErrServer, Message: transport.Error(), cause: transport}
	}
	return &Error{Type: fallback, Message: err.Error(), cause: err}
}
