package laoshi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	// Speech turns run STT, translation and TTS server-side, so the upload
	// carries a much longer deadline than ordinary calls, plus one retry.
	turnUploadTimeout = 90 * time.Second
	turnUploadRetries = 1

	audioPollInterval = time.Second
	audioPollAttempts = 10
)

// SpeechService submits voice turns and resolves deferred audio jobs.
type SpeechService struct {
	client *Client
}

// TurnUpload is one recorded utterance plus its fixed turn metadata.
type TurnUpload struct {
	Audio      []byte
	Filename   string // defaults to "turn.wav"
	MimeType   string // defaults to "audio/wav"
	SourceLang string
	TargetLang string
	Scenario   string
	Level      Level
}

// SubmitTurn uploads the utterance as multipart form data and returns the
// text result plus the normalized audio payload. The server may answer with
// audio inline, by URL, or defer it to a polled job; callers branch on the
// payload kind.
func (s *SpeechService) SubmitTurn(ctx context.Context, up *TurnUpload) (*TurnResult, AudioPayload, error) {
	body, contentType, err := encodeTurnUpload(up)
	if err != nil {
		return nil, AudioPayload{Kind: AudioAbsent}, err
	}

	req := apiRequest{
		method:      http.MethodPost,
		path:        "/v1/speech/turn",
		contentType: contentType,
		body:        body,
		timeout:     turnUploadTimeout,
		retries:     turnUploadRetries,
	}
	status, respBody, err := s.client.authedSend(ctx, req)
	if err != nil {
		return nil, AudioPayload{Kind: AudioAbsent}, err
	}
	if !is2xx(status) {
		return nil, AudioPayload{Kind: AudioAbsent}, statusError(status, respBody)
	}

	var resp speechTurnResponse
	if err := decodeBody(respBody, &resp); err != nil {
		return nil, AudioPayload{Kind: AudioAbsent}, err
	}

	result := &TurnResult{
		Transcript:        resp.Transcript,
		NormalizedRequest: resp.NormalizedRequest,
		Intent:            resp.Intent,
		Chinese:           resp.Chinese,
		Pinyin:            resp.Pinyin,
		Notes:             resp.Notes,
		AssistantText:     resp.AssistantText,
		Analysis:          resp.Analysis,
		TTSError:          resp.TTSError,
	}
	payload, err := normalizeTurnAudio(&resp)
	if err != nil {
		// The text result survives a malformed audio blob.
		return result, AudioPayload{Kind: AudioAbsent}, err
	}
	return result, payload, nil
}

// PollAudioJob fetches the status of one deferred audio job. On "ready" the
// returned payload is playable; on "error" reason carries the server-supplied
// explanation.
func (s *SpeechService) PollAudioJob(ctx context.Context, jobID string) (JobStatus, AudioPayload, string, error) {
	var resp audioJobResponse
	path := "/v1/speech/audio/" + jobID
	if err := s.client.authedJSON(ctx, http.MethodGet, path, nil, &resp, 0, 0); err != nil {
		return "", AudioPayload{Kind: AudioAbsent}, "", err
	}

	switch resp.Status {
	case JobPending:
		return JobPending, AudioPayload{Kind: AudioAbsent}, "", nil
	case JobReady:
		payload, err := normalizeJobAudio(&resp)
		if err != nil {
			return JobReady, AudioPayload{Kind: AudioAbsent}, "", err
		}
		return JobReady, payload, "", nil
	case JobError:
		reason := resp.TTSError
		if reason == "" {
			reason = "audio generation failed"
		}
		return JobError, AudioPayload{Kind: AudioAbsent}, reason, nil
	default:
		return resp.Status, AudioPayload{Kind: AudioAbsent}, "", fmt.Errorf("unexpected job status %q", resp.Status)
	}
}

// AwaitAudio polls the job on a fixed interval up to a bounded attempt
// count: an explicit iteration with an awaited delay and a typed terminal
// outcome rather than an open-ended callback chain. Exhausting the budget
// yields a TimeoutError; a job error yields a ServerError with the reason.
func (s *SpeechService) AwaitAudio(ctx context.Context, jobID string, interval time.Duration, attempts int) (AudioPayload, error) {
	if interval <= 0 {
		interval = audioPollInterval
	}
	if attempts <= 0 {
		attempts = audioPollAttempts
	}

	for i := 0; i < attempts; i++ {
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return AudioPayload{Kind: AudioAbsent}, NewAbortError("audio poll canceled", ctx.Err())
		}

		status, payload, reason, err := s.PollAudioJob(ctx, jobID)
		if err != nil {
			return AudioPayload{Kind: AudioAbsent}, err
		}
		switch status {
		case JobPending:
			continue
		case JobReady:
			return payload, nil
		case JobError:
			return AudioPayload{Kind: AudioAbsent}, NewServerError(http.StatusBadGateway, reason)
		}
	}
	return AudioPayload{Kind: AudioAbsent}, NewTimeoutError(
		fmt.Sprintf("audio job %s still pending after %d polls", jobID, attempts), nil)
}

// encodeTurnUpload builds the multipart body. The audio part is named
// "audio", matching the server contract.
func encodeTurnUpload(up *TurnUpload) ([]byte, string, error) {
	if len(up.Audio) == 0 {
		return nil, "", fmt.Errorf("turn upload has no audio")
	}
	filename := up.Filename
	if filename == "" {
		filename = "turn.wav"
	}
	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(up.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}

	fields := map[string]string{
		"level":       string(up.Level),
		"scenario":    up.Scenario,
		"source_lang": up.SourceLang,
		"target_lang": up.TargetLang,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
