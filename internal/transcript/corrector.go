package transcript

import (
	"strings"

	"github.com/voxnote/voxnote/internal/transcript/phonetic"
)

// Correction captures a single substitution applied to a transcript.
type Correction struct {
	// Original is the text as the model transcribed it.
	Original string

	// Corrected is the canonical vocabulary spelling it was replaced with.
	Corrected string

	// Confidence is the similarity score that justified the substitution
	// (0.0-1.0).
	Confidence float64

	// Method names the stage that produced this correction ("phonetic" or
	// "llm").
	Method string
}

// Corrector aligns misheard words in a transcript against a user-supplied
// vocabulary of canonical spellings using phonetic matching. It never touches
// ordinary words: only tokens that phonetically resemble a vocabulary term are
// replaced.
//
// Corrector is safe for concurrent use — it is read-only after construction.
type Corrector struct {
	matcher    *phonetic.Matcher
	vocabulary []string
	maxWords   int
}

// NewCorrector creates a [Corrector] for the given vocabulary. A nil or empty
// vocabulary yields a corrector whose Correct is a no-op.
func NewCorrector(vocabulary []string, opts ...phonetic.Option) *Corrector {
	return &Corrector{
		matcher:    phonetic.New(opts...),
		vocabulary: vocabulary,
		maxWords:   maxWordCount(vocabulary),
	}
}

// Correct runs phonetic vocabulary alignment over text and returns the
// corrected text plus the list of substitutions made.
//
// The algorithm:
//  1. Tokenise the text into whitespace-separated words.
//  2. At each token position, try n-gram windows from the widest vocabulary
//     term down to a single token. Accept the longest matching window so that
//     multi-word terms take precedence over partial single-word matches.
//  3. Append matched (or unmatched) tokens to the output and advance the
//     cursor by the number of tokens consumed.
//
// Punctuation attached to a token survives the substitution: trailing
// punctuation from the last consumed token is re-appended after the canonical
// term.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.vocabulary) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		// Clamp window size to remaining tokens.
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			stripped, trailing := splitTrailingPunct(window)

			term, conf, ok := c.matcher.Match(stripped, c.vocabulary)
			if !ok {
				continue
			}

			output = append(output, strings.Fields(term+trailing)...)
			corrections = append(corrections, Correction{
				Original:   stripped,
				Corrected:  term,
				Confidence: conf,
				Method:     "phonetic",
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// splitTrailingPunct separates trailing sentence punctuation from a phrase so
// the phonetic matcher sees clean words.
func splitTrailingPunct(s string) (stripped, trailing string) {
	cut := len(s)
	for cut > 0 {
		switch s[cut-1] {
		case '.', ',', '!', '?', ';', ':':
			cut--
		default:
			return s[:cut], s[cut:]
		}
	}
	return s[:cut], s[cut:]
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any vocabulary term. Returns 1 when the vocabulary is empty.
func maxWordCount(terms []string) int {
	max := 1
	for _, t := range terms {
		n := len(strings.Fields(t))
		if n > max {
			max = n
		}
	}
	return max
}
