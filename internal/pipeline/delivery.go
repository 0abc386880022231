package pipeline

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// InlineLimit is the maximum transcript length, in characters, delivered as
// an inline message. Longer transcripts go out as a file attachment. Matches
// the host platform's message-size ceiling.
const InlineLimit = 4096

// transcriptExtension is the document extension for file-attachment
// deliveries.
const transcriptExtension = ".md"

// voiceNoteTimeFormat names voice-note transcripts, which have no source
// filename of their own.
const voiceNoteTimeFormat = "20060102_150405"

// Mode selects how a transcript is returned to the user.
type Mode int

const (
	// ModeInline delivers the transcript as message text.
	ModeInline Mode = iota

	// ModeFile delivers the transcript as a document attachment.
	ModeFile
)

// String returns the human-readable name of the mode.
func (m Mode) String() string {
	if m == ModeFile {
		return "file"
	}
	return "inline"
}

// Delivery is the outcome of the delivery decision. Derived per submission,
// never stored.
type Delivery struct {
	// Mode is inline or file.
	Mode Mode

	// Text is the message body for inline mode, already escaped for the
	// platform's rich-text formatting. Empty in file mode.
	Text string

	// Filename names the attachment in file mode. Empty in inline mode.
	Filename string

	// Content is the raw transcript bytes for file mode. Empty in inline mode.
	Content []byte
}

// inlineEscaper escapes the characters the target rich-text formatting treats
// as control characters in otherwise plain transcript text.
var inlineEscaper = strings.NewReplacer(
	".", `\.`,
	"-", `\-`,
	"!", `\!`,
	"(", `\(`,
	")", `\)`,
)

// EscapeInline escapes formatting control characters for inline delivery.
func EscapeInline(s string) string {
	return inlineEscaper.Replace(s)
}

// SelectDelivery chooses inline vs file delivery from the transcript length
// alone. now supplies the timestamp for voice-note filenames.
func SelectDelivery(t Transcript, audio Audio, now time.Time) Delivery {
	if utf8.RuneCountInString(t.Text) <= InlineLimit {
		return Delivery{
			Mode: ModeInline,
			Text: EscapeInline(t.Text),
		}
	}
	return Delivery{
		Mode:     ModeFile,
		Filename: transcriptFilename(audio, now),
		Content:  []byte(t.Text),
	}
}

// transcriptFilename derives the attachment name from the source recording,
// or a timestamped default for voice notes.
func transcriptFilename(audio Audio, now time.Time) string {
	if audio.VoiceNote || audio.Filename == "" {
		return "voice_message_" + now.Format(voiceNoteTimeFormat) + transcriptExtension
	}
	base := filepath.Base(audio.Filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "transcript"
	}
	return stem + transcriptExtension
}
