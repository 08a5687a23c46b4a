package id

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(string(id), "sess_") {
		t.Errorf("Expected sess_ prefix, got %s", id)
	}
	if len(id) != len("sess_")+26 {
		t.Errorf("Expected 26-char ULID payload, got %d chars", len(id)-len("sess_"))
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[SessionID]bool)
	for i := 0; i < 1000; i++ {
		id := NewSessionID()
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSortability(t *testing.T) {
	first := NewSessionID()
	time.Sleep(2 * time.Millisecond)
	second := NewSessionID()

	if !(string(first) < string(second)) {
		t.Errorf("IDs should sort by generation time: %s !< %s", first, second)
	}
}

func TestIsSessionID(t *testing.T) {
	if !IsSessionID(string(NewSessionID())) {
		t.Error("Generated ID should be recognized")
	}
	if IsSessionID("workspace_3") {
		t.Error("Foreign ID should not be recognized")
	}
}
