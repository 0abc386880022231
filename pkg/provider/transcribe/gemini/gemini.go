// Package gemini implements the transcribe.Provider interface for Google's
// Gemini API via google.golang.org/genai.
//
// Audio bytes are attached inline to a single generateContent call together
// with a fixed instruction asking for a verbatim transcription with speaker
// labels. The SDK carries the bytes as base64 inline data on the wire.
//
// Failure classification is derived from the SDK's structured error values:
// HTTP 429 / RESOURCE_EXHAUSTED becomes [transcribe.KindRateLimited], a prompt
// block reason becomes [transcribe.KindBlocked], and a response with no
// candidate text becomes [transcribe.KindEmpty]. Everything else is a
// transport failure.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// Compile-time assertion that Provider satisfies the transcribe interface.
var _ transcribe.Provider = (*Provider)(nil)

const defaultModel = "gemini-2.0-flash"

// transcriptionPrompt is the fixed instruction sent with every audio segment.
// The leading "# Transcription" line the model tends to echo back is stripped
// by the normalizer downstream.
const transcriptionPrompt = "Transcribe this audio verbatim. " +
	"If more than one person is speaking, label each line with the speaker " +
	"as \"Speaker 1:\", \"Speaker 2:\" and so on. " +
	"Do not summarise, translate, or add commentary; output only the transcription."

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for transcription.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API endpoint. Primarily used in tests to point at
// a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements transcribe.Provider for the Gemini API.
type Provider struct {
	client     *genai.Client
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Gemini Provider. Client construction performs no network I/O;
// credentials are only exercised on the first Transcribe call.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}

	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions.BaseURL = p.baseURL
	}
	if p.httpClient != nil {
		cc.HTTPClient = p.httpClient
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "gemini" }

// Transcribe implements transcribe.Provider. It issues exactly one
// generateContent call with the audio attached inline.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcriptionPrompt),
			genai.NewPartFromBytes(req.Data, req.MIME),
		}, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", classifyError(err)
	}

	if reason := blockReason(resp); reason != "" {
		return "", transcribe.NewError(transcribe.KindBlocked,
			fmt.Sprintf("prompt blocked: %s", reason), nil)
	}

	text := resp.Text()
	if len(resp.Candidates) == 0 || text == "" {
		return "", transcribe.NewError(transcribe.KindEmpty,
			"model returned no candidate text", nil)
	}

	slog.Debug("gemini transcription response",
		"model", p.model,
		"bytes_in", len(req.Data),
		"chars_out", len(text),
	)
	return text, nil
}

// classifyError maps SDK errors to the typed transcription error model.
// Classification happens here, from structured fields, so callers never have
// to match on message strings.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return transcribe.NewError(transcribe.KindRateLimited, "gemini rate limit", err)
		}
		return transcribe.NewError(transcribe.KindTransport,
			fmt.Sprintf("gemini api error %d", apiErr.Code), err)
	}
	return transcribe.NewError(transcribe.KindTransport, "gemini call failed", err)
}

// blockReason returns the prompt-feedback block reason, or "" when the
// response was not blocked.
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	br := resp.PromptFeedback.BlockReason
	if br == "" || br == genai.BlockedReasonUnspecified {
		return ""
	}
	return string(br)
}
