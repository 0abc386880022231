// Package transcript cleans up raw model transcription output: boilerplate
// prefix stripping, speaker-label detection with single-speaker suppression,
// and an optional phonetic vocabulary correction pass for user-supplied terms.
package transcript

import (
	"strconv"
	"strings"
)

// documentHeader is the title line the model prepends to transcriptions.
// It is document-level framing: the first chunk keeps it, later chunks have
// any re-emitted copy stripped so concatenation does not duplicate it.
const documentHeader = "# Transcription"

// preamblePrefixes are conversational lead-ins the model sometimes emits
// despite the prompt. Exact-string removal, applied in this order on every
// chunk.
var preamblePrefixes = []string{
	"Okay, here is the transcription:\n",
	"Here's the transcription:\n",
}

// maxSpeakers bounds the speaker-label scan. Labels outside 1..9 are left
// untouched.
const maxSpeakers = 9

// Normalize cleans one raw transcription segment. first marks the first chunk
// of a submission; only later chunks have a re-emitted document header
// removed. Normalize is idempotent for text already free of the recognized
// boilerplate.
func Normalize(raw string, first bool) string {
	s := raw

	if !first {
		s = stripDocumentHeader(s)
	}
	for _, p := range preamblePrefixes {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSpace(s)

	speakers := DetectSpeakers(s)
	if len(speakers) == 1 {
		s = suppressSpeaker(s, speakers[0])
	}
	return s
}

// stripDocumentHeader removes a leading document header line, with or without
// the blank line that usually follows it.
func stripDocumentHeader(s string) string {
	if rest, ok := strings.CutPrefix(s, documentHeader+"\n\n"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(s, documentHeader+"\n"); ok {
		return rest
	}
	return s
}

// DetectSpeakers scans text line-by-line for speaker labels in plain
// ("Speaker 3:") or bold ("**Speaker 3:**") form and returns the distinct
// speaker numbers found, in ascending order.
func DetectSpeakers(text string) []int {
	seen := [maxSpeakers + 1]bool{}
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "Speaker ") && !strings.HasPrefix(line, "**Speaker ") {
			continue
		}
		for n := 1; n <= maxSpeakers; n++ {
			num := strconv.Itoa(n)
			if strings.HasPrefix(line, "Speaker "+num+":") ||
				strings.HasPrefix(line, "**Speaker "+num+":**") {
				seen[n] = true
				break
			}
		}
	}

	var speakers []int
	for n := 1; n <= maxSpeakers; n++ {
		if seen[n] {
			speakers = append(speakers, n)
		}
	}
	return speakers
}

// suppressSpeaker removes every occurrence of speaker n's label in both
// forms. A lone label carries no information: it only distinguishes voices
// when at least two speakers are present.
func suppressSpeaker(text string, n int) string {
	num := strconv.Itoa(n)
	for _, label := range []string{
		"**Speaker " + num + ":** ",
		"**Speaker " + num + ":**",
		"Speaker " + num + ": ",
		"Speaker " + num + ":",
	} {
		text = strings.ReplaceAll(text, label, "")
	}
	return strings.TrimSpace(text)
}
