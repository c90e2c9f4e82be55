package clock

import (
	"testing"
	"time"
)

func TestSystem_UsesLocation(t *testing.T) {
	loc := time.FixedZone("clinic", -3*3600)
	now := System{Location: loc}.Now()
	if now.Location() != loc {
		t.Errorf("expected clinic location, got %s", now.Location())
	}
}

func TestSystem_NilLocation(t *testing.T) {
	before := time.Now()
	now := System{}.Now()
	if now.Before(before) {
		t.Errorf("System.Now() went backwards: %s < %s", now, before)
	}
}

func TestManual_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	m := NewManual(start)
	if !m.Now().Equal(start) {
		t.Fatalf("expected %s, got %s", start, m.Now())
	}

	m.Advance(16 * time.Minute)
	if want := start.Add(16 * time.Minute); !m.Now().Equal(want) {
		t.Errorf("expected %s, got %s", want, m.Now())
	}

	later := start.Add(24 * time.Hour)
	m.Set(later)
	if !m.Now().Equal(later) {
		t.Errorf("expected %s, got %s", later, m.Now())
	}
}
