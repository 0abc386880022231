package llmrefine_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxnote/voxnote/internal/transcript/llmrefine"
	"github.com/voxnote/voxnote/pkg/provider/llm"
	llmmock "github.com/voxnote/voxnote/pkg/provider/llm/mock"
)

func TestRefiner_AppliesRefinedText(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"refined_text": "Hello, world."}`,
		},
	}
	r := llmrefine.New(p)

	got, err := r.Refine(context.Background(), "hello world", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello, world." {
		t.Errorf("Refine() = %q, want %q", got, "Hello, world.")
	}
	if p.CallCount() != 1 {
		t.Errorf("Complete calls = %d, want 1", p.CallCount())
	}
}

func TestRefiner_StripsCodeFences(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"refined_text\": \"clean\"}\n```",
		},
	}
	r := llmrefine.New(p)

	got, err := r.Refine(context.Background(), "dirty", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "clean" {
		t.Errorf("Refine() = %q, want %q", got, "clean")
	}
}

func TestRefiner_UnparseableResponseKeepsOriginal(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "Sure! Here is the polished transcript: hello",
		},
	}
	r := llmrefine.New(p)

	got, err := r.Refine(context.Background(), "original text", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "original text" {
		t.Errorf("Refine() = %q, want original on unparseable response", got)
	}
}

func TestRefiner_ProviderErrorReturnsOriginalAndError(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteErr: errors.New("boom")}
	r := llmrefine.New(p)

	got, err := r.Refine(context.Background(), "original text", nil)
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if got != "original text" {
		t.Errorf("Refine() = %q, want original text alongside the error", got)
	}
}

func TestRefiner_VocabularyInSystemPrompt(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"refined_text": "x"}`,
		},
	}
	r := llmrefine.New(p)

	_, err := r.Refine(context.Background(), "some text", []string{"Grafana", "Apache Kafka"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "- Grafana\n") ||
		!strings.Contains(req.SystemPrompt, "- Apache Kafka\n") {
		t.Errorf("system prompt missing vocabulary terms:\n%s", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "some text" {
		t.Errorf("messages = %+v, want single user message with the transcript", req.Messages)
	}
}

func TestRefiner_EmptyInputSkipsLLM(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	r := llmrefine.New(p)

	got, err := r.Refine(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "   " {
		t.Errorf("Refine() = %q, want input unchanged", got)
	}
	if p.CallCount() != 0 {
		t.Errorf("Complete calls = %d, want 0 for blank input", p.CallCount())
	}
}
