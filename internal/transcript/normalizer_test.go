package transcript

import (
	"reflect"
	"testing"
)

func TestNormalize_StripsPreamblePrefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   string
		first bool
		want  string
	}{
		{
			name:  "okay preamble",
			raw:   "Okay, here is the transcription:\nhello world",
			first: true,
			want:  "hello world",
		},
		{
			name:  "heres preamble",
			raw:   "Here's the transcription:\nhello world",
			first: true,
			want:  "hello world",
		},
		{
			name:  "no preamble",
			raw:   "hello world",
			first: true,
			want:  "hello world",
		},
		{
			name: "preamble mid-text untouched",
			raw:  "hello\nHere's the transcription:\nworld",

			first: true,
			want:  "hello\nHere's the transcription:\nworld",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.raw, tt.first); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_DocumentHeaderKeptOnFirstChunk(t *testing.T) {
	t.Parallel()

	raw := "# Transcription\n\nhello world"
	if got := Normalize(raw, true); got != "# Transcription\n\nhello world" {
		t.Errorf("first chunk = %q, want header retained", got)
	}
	if got := Normalize(raw, false); got != "hello world" {
		t.Errorf("later chunk = %q, want header stripped", got)
	}
}

func TestNormalize_HeaderWithoutBlankLine(t *testing.T) {
	t.Parallel()

	if got := Normalize("# Transcription\nhello", false); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Okay, here is the transcription:\nSpeaker 1: hi\nSpeaker 2: hey",
		"# Transcription\n\nplain text",
		"just words",
		"**Speaker 1:** only one voice here",
	}
	for _, in := range inputs {
		for _, first := range []bool{true, false} {
			once := Normalize(in, first)
			twice := Normalize(once, first)
			if once != twice {
				t.Errorf("Normalize not idempotent for %q (first=%v): %q != %q",
					in, first, once, twice)
			}
		}
	}
}

func TestNormalize_SingleSpeakerSuppressed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain label",
			raw:  "Speaker 1: hello there\nSpeaker 1: more text",
			want: "hello there\nmore text",
		},
		{
			name: "bold label",
			raw:  "**Speaker 2:** hello there",
			want: "hello there",
		},
		{
			name: "two speakers kept",
			raw:  "Speaker 1: hi\nSpeaker 2: hey",
			want: "Speaker 1: hi\nSpeaker 2: hey",
		},
		{
			name: "label beyond range untouched",
			raw:  "Speaker 12: hello",
			want: "Speaker 12: hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.raw, true); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDetectSpeakers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []int
	}{
		{
			name: "none",
			text: "no labels here",
			want: nil,
		},
		{
			name: "plain and bold mixed",
			text: "Speaker 1: hi\n**Speaker 3:** hey\nSpeaker 1: again",
			want: []int{1, 3},
		},
		{
			name: "mid-line label ignored",
			text: "he said Speaker 1: is a label",
			want: nil,
		},
		{
			name: "zero and double digit ignored",
			text: "Speaker 0: x\nSpeaker 10: y",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectSpeakers(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectSpeakers(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
