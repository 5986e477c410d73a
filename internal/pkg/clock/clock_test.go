package clock

import (
	"testing"
	"time"
)

func TestTimeClocker_Now(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := New().Now()
	after := time.Now()

	if got.Location() != time.UTC {
		t.Fatalf("Now().Location() = %v, want UTC", got.Location())
	}
	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Fatalf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestManual(t *testing.T) {
	t.Parallel()

	// Arrange
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewManual(start)

	// Act & Assert
	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	if got := m.Advance(5 * time.Minute); !got.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("Advance() = %v, want %v", got, start.Add(5*time.Minute))
	}

	m.Set(start)
	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("Now() after Set = %v, want %v", got, start)
	}
}
