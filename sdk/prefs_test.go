package laoshi

import (
	"testing"
	"time"
)

func TestPreferences_SpeakerDefaultsToTeacher(t *testing.T) {
	p := NewPreferences(NewMemoryStore())
	if got := p.Speaker(); got != SpeakerTeacher {
		t.Errorf("Speaker() = %q, want teacher default", got)
	}
}

func TestPreferences_SpeakerRoundTrip(t *testing.T) {
	p := NewPreferences(NewMemoryStore())
	if err := p.SetSpeaker(SpeakerPartner); err != nil {
		t.Fatalf("SetSpeaker() error = %v", err)
	}
	if got := p.Speaker(); got != SpeakerPartner {
		t.Errorf("Speaker() = %q, want partner", got)
	}
}

func TestPreferences_UnknownSpeakerFallsBack(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(speakerPrefKey, "robot"); err != nil {
		t.Fatal(err)
	}
	p := NewPreferences(store)
	if got := p.Speaker(); got != SpeakerTeacher {
		t.Errorf("Speaker() = %q, want teacher fallback for unknown value", got)
	}
}

func TestPreferences_UnlockExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPreferences(NewMemoryStore())
	p.now = func() time.Time { return now }

	if p.Unlocked() {
		t.Fatal("Unlocked() = true before any unlock")
	}
	if err := p.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !p.Unlocked() {
		t.Fatal("Unlocked() = false immediately after Unlock")
	}

	now = now.Add(14 * time.Minute)
	if !p.Unlocked() {
		t.Error("Unlocked() = false inside the 15 minute window")
	}

	now = now.Add(2 * time.Minute)
	if p.Unlocked() {
		t.Error("Unlocked() = true after the window elapsed")
	}
}

func TestPreferences_ClearUnlock(t *testing.T) {
	p := NewPreferences(NewMemoryStore())
	if err := p.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := p.ClearUnlock(); err != nil {
		t.Fatalf("ClearUnlock() error = %v", err)
	}
	if p.Unlocked() {
		t.Error("Unlocked() = true after ClearUnlock")
	}
}

func TestPreferences_GarbageTimestamp(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(appUnlockKey, "not a timestamp"); err != nil {
		t.Fatal(err)
	}
	p := NewPreferences(store)
	if p.Unlocked() {
		t.Error("Unlocked() = true for an unparseable timestamp")
	}
}
