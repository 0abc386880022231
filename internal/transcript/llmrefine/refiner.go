// Package llmrefine implements an optional language-model polishing stage for
// assembled transcripts.
//
// The [Refiner] sends the transcript to an [llm.Provider] with a conservative
// system prompt: fix punctuation, casing, and obvious mishears of the supplied
// vocabulary terms, never rephrase. The model returns a structured JSON
// response so the stage can distinguish a genuine refinement from prose the
// model volunteered.
//
// Refinement is strictly best-effort. When the response cannot be parsed the
// refiner returns the original text unchanged rather than surfacing an error,
// so a flaky refinement model never blocks transcript delivery.
package llmrefine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxnote/voxnote/pkg/provider/llm"
)

const defaultTemperature = 0.1

// systemPromptTemplate is the base system prompt. The vocabulary list is
// appended at call time.
const systemPromptTemplate = `You are a transcript cleanup assistant for voice message transcriptions.

Your task: lightly polish the provided transcript without changing its meaning.

Rules:
- Fix punctuation, capitalisation, and paragraph breaks where they are clearly wrong.
- Correct words that are obvious mishears of the known terms listed below; use the canonical spelling exactly.
- Do NOT rephrase, summarise, translate, or remove content.
- Do NOT remove speaker labels such as "Speaker 1:".
- Be conservative. When in doubt, leave the text unchanged.

Known terms:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "refined_text": "<full polished transcript>"
}

If no changes are needed, return refined_text equal to the input.`

// Option is a functional option for configuring a [Refiner].
type Option func(*Refiner)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic output. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(r *Refiner) {
		r.temperature = temp
	}
}

// refineResponse is the expected JSON structure returned by the LLM.
type refineResponse struct {
	RefinedText string `json:"refined_text"`
}

// Refiner polishes transcripts using an [llm.Provider]. It is safe for
// concurrent use.
type Refiner struct {
	llm         llm.Provider
	temperature float64
}

// New returns a new [Refiner] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Refiner {
	r := &Refiner{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Refine sends text to the LLM and returns the polished version. vocabulary
// lists canonical spellings the model should prefer; it may be empty.
//
// When the LLM response is unparseable or empty, Refine returns the original
// text unchanged with a nil error (graceful degradation). Context
// cancellation and network errors are returned as non-nil errors with the
// original text, so callers can log and deliver the unrefined transcript.
func (r *Refiner) Refine(ctx context.Context, text string, vocabulary []string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(vocabulary),
		Temperature:  r.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	}

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return text, fmt.Errorf("llm refiner: complete: %w", err)
	}

	refined, parseErr := parseResponse(resp.Content)
	if parseErr != nil || refined == "" {
		// Unparseable or empty response: keep the original.
		return text, nil
	}
	return refined, nil
}

// buildSystemPrompt formats the system prompt template with the vocabulary
// list.
func buildSystemPrompt(vocabulary []string) string {
	if len(vocabulary) == 0 {
		return fmt.Sprintf(systemPromptTemplate, "- (none)\n")
	}
	var sb strings.Builder
	for _, v := range vocabulary {
		sb.WriteString("- ")
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// parseResponse attempts to unmarshal the LLM output into a [refineResponse].
// It strips markdown code fences before parsing.
func parseResponse(content string) (string, error) {
	cleaned := stripMarkdown(content)

	var r refineResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return "", fmt.Errorf("llm refiner: parse response: %w", err)
	}
	return r.RefinedText, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
