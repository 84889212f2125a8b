package service

import (
	"reflect"
	"testing"
)

func TestDetectMentions(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"@explain what is a goroutine?", []string{"@explain"}},
		{"try @help and @notes please", []string{"@help", "@notes"}},
		{"no mentions here", nil},
		{"email me at explain@example.com", nil},
		{"@helper is not the assistant", nil},
		{"punctuation, @explain!", []string{"@explain"}},
	}

	for _, tt := range tests {
		got := detectMentions(tt.text)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("detectMentions(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestHasBotTrigger(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"@explain recursion", true},
		{"@help me out", true},
		{"@notes summary please", false}, // notes is a mention, not a reply trigger
		{"plain text", false},
		{"@explanation is a different word", false},
	}

	for _, tt := range tests {
		if got := hasBotTrigger(tt.text); got != tt.want {
			t.Errorf("hasBotTrigger(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
