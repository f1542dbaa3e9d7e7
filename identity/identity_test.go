package identity

import (
	"strings"
	"testing"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"user message", UserMessageID, "u-"},
		{"bot message", BotMessageID, "b-"},
		{"error message", ErrorMessageID, "e-"},
		{"conversation", ConversationID, "c-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, id)
			}
			if len(id) <= len(tt.prefix) {
				t.Errorf("id %q has no body after prefix", id)
			}
		})
	}
}
