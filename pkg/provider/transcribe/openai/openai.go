// Package openai implements the transcribe.Provider interface using the
// OpenAI audio transcription endpoint (Whisper).
//
// It serves as the fallback backend behind Gemini: same typed error
// classification, derived from the SDK's structured API error rather than
// message strings.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the transcribe.Provider interface.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai transcribe: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements transcribe.Provider. The audio is uploaded as a
// multipart file; the endpoint infers the codec from the filename extension.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(req.Data), "audio"+extensionFor(req.MIME), req.MIME),
	})
	if err != nil {
		return "", classifyError(err)
	}
	if resp.Text == "" {
		return "", transcribe.NewError(transcribe.KindEmpty,
			"model returned empty transcription", nil)
	}
	return resp.Text, nil
}

// classifyError maps OpenAI SDK errors to the typed transcription error model.
func classifyError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return transcribe.NewError(transcribe.KindRateLimited, "openai rate limit", err)
		}
		return transcribe.NewError(transcribe.KindTransport,
			fmt.Sprintf("openai api error %d", apiErr.StatusCode), err)
	}
	return transcribe.NewError(transcribe.KindTransport, "openai call failed", err)
}

// extensionFor maps the accepted audio MIME types to a filename extension for
// the multipart upload. Unknown types fall back to ".bin"; the endpoint then
// relies on content sniffing.
func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/x-m4a", "audio/mp4":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/aac", "audio/x-aac":
		return ".aac"
	default:
		return ".bin"
	}
}
