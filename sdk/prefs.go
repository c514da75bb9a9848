package laoshi

import (
	"time"
)

// Speaker is the cached voice-persona preference.
type Speaker string

const (
	SpeakerTeacher Speaker = "teacher"
	SpeakerPartner Speaker = "partner"
)

const (
	speakerPrefKey = "speaker_preference"
	appUnlockKey   = "app_unlock_at"

	// unlockTTL is how long the password gate stays open.
	unlockTTL = 15 * time.Minute
)

// Preferences layers the durable client preferences over the secure store:
// the speaker enum and the app-unlock timestamp with its fixed TTL.
type Preferences struct {
	store SecureStore
	now   func() time.Time
}

// NewPreferences wraps a secure store.
func NewPreferences(store SecureStore) *Preferences {
	return &Preferences{store: store, now: time.Now}
}

// Speaker returns the cached preference, defaulting to the teacher persona.
func (p *Preferences) Speaker() Speaker {
	raw, err := p.store.Get(speakerPrefKey)
	if err != nil {
		return SpeakerTeacher
	}
	switch Speaker(raw) {
	case SpeakerTeacher, SpeakerPartner:
		return Speaker(raw)
	default:
		return SpeakerTeacher
	}
}

// SetSpeaker persists the preference.
func (p *Preferences) SetSpeaker(s Speaker) error {
	return p.store.Set(speakerPrefKey, string(s))
}

// Unlock records a successful password-gate pass at the current time.
func (p *Preferences) Unlock() error {
	return p.store.Set(appUnlockKey, p.now().UTC().Format(time.RFC3339))
}

// Unlocked reports whether the gate was passed within the TTL.
func (p *Preferences) Unlocked() bool {
	raw, err := p.store.Get(appUnlockKey)
	if err != nil || raw == "" {
		return false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	return p.now().Sub(at) < unlockTTL
}

// ClearUnlock closes the gate.
func (p *Preferences) ClearUnlock() error {
	return p.store.Delete(appUnlockKey)
}
