package laoshi

// TokenPair is what the auth endpoints return: a short-lived access token
// held only in memory, and an optional rotated refresh token that goes into
// the secure store.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Level is the learner proficiency sent with chat and speech turns.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
)

// ChatMessage is one entry in a conversation. The sequence is append-only
// except for in-place text mutation while an assistant reply is being
// revealed, and removal of the transient typing placeholder.
type ChatMessage struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Teaching *Teaching `json:"teaching,omitempty"`
	IsTyping bool      `json:"is_typing,omitempty"`
}

// Teaching is the structured annotation attached to assistant replies.
type Teaching struct {
	Translation  string     `json:"translation"`
	Pinyin       string     `json:"pinyin"`
	KeyPoints    []KeyPoint `json:"key_points"`
	Alternatives []string   `json:"alternatives"`
	FollowUp     string     `json:"follow_up"`
}

// KeyPoint highlights one phrase from a reply.
type KeyPoint struct {
	Phrase  string `json:"phrase"`
	Pinyin  string `json:"pinyin"`
	Meaning string `json:"meaning"`
}

// ChatResponse is the reply to one chat turn.
type ChatResponse struct {
	Reply    string    `json:"reply"`
	Teaching *Teaching `json:"teaching,omitempty"`
}

// TurnResult is the text outcome of one voice turn. It is retained and shown
// even when audio resolution subsequently fails; text and audio are
// independent outcomes of the same turn.
type TurnResult struct {
	Transcript        string    `json:"transcript"`
	NormalizedRequest string    `json:"normalized_request"`
	Intent            string    `json:"intent"`
	Chinese           string    `json:"chinese"`
	Pinyin            string    `json:"pinyin"`
	Notes             []string  `json:"notes"`
	AssistantText     string    `json:"assistant_text,omitempty"`
	Analysis          *Analysis `json:"analysis,omitempty"`
	TTSError          string    `json:"tts_error,omitempty"`
}

// Analysis carries optional pronunciation scoring for a turn.
type Analysis struct {
	OverallScore      *float64  `json:"overall_score"`
	PhonemeConfidence []float64 `json:"phoneme_confidence"`
}

// JobStatus is the state of a deferred audio job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobReady   JobStatus = "ready"
	JobError   JobStatus = "error"
)

// speechTurnResponse is the raw wire shape of POST /v1/speech/turn. The
// audio fields vary (nested object, flat url, flat base64, or a deferred
// job); normalizeTurnAudio collapses them into one AudioPayload before
// anything else looks at them.
type speechTurnResponse struct {
	AssistantText     string     `json:"assistant_text"`
	SourceLang        string     `json:"source_lang"`
	TargetLang        string     `json:"target_lang"`
	Scenario          string     `json:"scenario"`
	Transcript        string     `json:"transcript"`
	NormalizedRequest string     `json:"normalized_request"`
	Intent            string     `json:"intent"`
	Chinese           string     `json:"chinese"`
	Pinyin            string     `json:"pinyin"`
	Notes             []string   `json:"notes"`
	Audio             *wireAudio `json:"audio,omitempty"`
	AudioURL          string     `json:"audio_url,omitempty"`
	AudioBase64       string     `json:"audio_base64,omitempty"`
	AudioMime         string     `json:"audio_mime,omitempty"`
	AudioPending      bool       `json:"audio_pending,omitempty"`
	AudioJobID        string     `json:"audio_job_id,omitempty"`
	TTSError          string     `json:"tts_error,omitempty"`
	Analysis          *Analysis  `json:"analysis,omitempty"`
}

type wireAudio struct {
	Format string `json:"format"`
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// audioJobResponse is the wire shape of GET /v1/speech/audio/{job_id}.
type audioJobResponse struct {
	Status      JobStatus `json:"status"`
	AudioURL    string    `json:"audio_url,omitempty"`
	AudioBase64 string    `json:"audio_base64,omitempty"`
	AudioMime   string    `json:"audio_mime,omitempty"`
	TTSError    string    `json:"tts_error,omitempty"`
}
