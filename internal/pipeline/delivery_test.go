package pipeline

import (
	"strings"
	"testing"
	"time"
)

func TestSelectDelivery_InlineAtLimit(t *testing.T) {
	text := strings.Repeat("a", InlineLimit)
	d := SelectDelivery(Transcript{Text: text}, Audio{}, time.Now())
	if d.Mode != ModeInline {
		t.Fatalf("mode = %v, want inline at exactly %d chars", d.Mode, InlineLimit)
	}
	if d.Text != text {
		t.Error("inline text altered despite containing no escapable characters")
	}
	if d.Filename != "" || d.Content != nil {
		t.Error("inline delivery must not carry file fields")
	}
}

func TestSelectDelivery_FileOverLimit(t *testing.T) {
	text := strings.Repeat("a", InlineLimit+1)
	now := time.Date(2024, 3, 15, 10, 45, 0, 0, time.UTC)
	d := SelectDelivery(Transcript{Text: text}, Audio{VoiceNote: true}, now)
	if d.Mode != ModeFile {
		t.Fatalf("mode = %v, want file at %d chars", d.Mode, InlineLimit+1)
	}
	if d.Filename != "voice_message_20240315_104500.md" {
		t.Errorf("filename = %q", d.Filename)
	}
	if string(d.Content) != text {
		t.Error("file content must be the unescaped transcript")
	}
	if d.Text != "" {
		t.Error("file delivery must not carry inline text")
	}
}

func TestSelectDelivery_LimitCountsRunesNotBytes(t *testing.T) {
	// 4096 two-byte runes exceed the limit in bytes but not in characters.
	text := strings.Repeat("é", InlineLimit)
	d := SelectDelivery(Transcript{Text: text}, Audio{}, time.Now())
	if d.Mode != ModeInline {
		t.Errorf("mode = %v, want inline for %d runes", d.Mode, InlineLimit)
	}
}

func TestSelectDelivery_InlineEscaping(t *testing.T) {
	d := SelectDelivery(Transcript{Text: "Done. (mostly) - yes!"}, Audio{}, time.Now())
	want := `Done\. \(mostly\) \- yes\!`
	if d.Text != want {
		t.Errorf("text = %q, want %q", d.Text, want)
	}
}

func TestSelectDelivery_FilenameFromRecording(t *testing.T) {
	text := strings.Repeat("a", InlineLimit+1)
	tests := []struct {
		name  string
		audio Audio
		want  string
	}{
		{
			"named recording",
			Audio{Filename: "standup meeting.m4a"},
			"standup meeting.md",
		},
		{
			"path stripped",
			Audio{Filename: "uploads/2024/notes.ogg"},
			"notes.md",
		},
		{
			"extension only",
			Audio{Filename: ".m4a"},
			"transcript.md",
		},
		{
			"voice note ignores filename",
			Audio{Filename: "ignored.ogg", VoiceNote: true},
			"voice_message_20240315_104500.md",
		},
		{
			"no filename falls back to timestamp",
			Audio{},
			"voice_message_20240315_104500.md",
		},
	}
	now := time.Date(2024, 3, 15, 10, 45, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := SelectDelivery(Transcript{Text: text}, tt.audio, now)
			if d.Filename != tt.want {
				t.Errorf("filename = %q, want %q", d.Filename, tt.want)
			}
		})
	}
}

func TestAcceptedMIME(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"audio/ogg", true},
		{"audio/mpeg", true},
		{"audio/x-m4a", true},
		{"AUDIO/OGG", true},
		{"audio/ogg; codecs=opus", true},
		{" audio/wav ", true},
		{"video/mp4", false},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AcceptedMIME(tt.mime); got != tt.want {
			t.Errorf("AcceptedMIME(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestAcceptedMIMEList_MatchesAcceptedSet(t *testing.T) {
	list := AcceptedMIMEList()
	if len(list) != len(acceptedMIME) {
		t.Fatalf("list has %d entries, set has %d", len(list), len(acceptedMIME))
	}
	for _, m := range list {
		if !AcceptedMIME(m) {
			t.Errorf("listed type %q not accepted", m)
		}
	}
}
