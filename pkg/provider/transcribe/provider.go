// Package transcribe defines the Provider interface for hosted audio
// transcription backends and the typed error model shared by all
// implementations.
//
// A transcription provider wraps a remote generative model API (e.g., Google
// Gemini or the OpenAI audio endpoint) and exposes a single blocking call that
// turns one audio segment into raw transcript text. Error classification
// happens inside each provider, from the backend's structured error values,
// so callers can branch on [Kind] without inspecting message strings.
//
// Implementors must be safe for concurrent use.
package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a transcription failure for retry and user-messaging
// decisions.
type Kind int

const (
	// KindTransport covers network and backend failures with no more specific
	// classification. Not retried by the pipeline.
	KindTransport Kind = iota

	// KindRateLimited marks a transient provider-side refusal due to request
	// volume. The pipeline retries these with backoff before giving up.
	KindRateLimited

	// KindBlocked means the model's safety system refused the content.
	// Permanent for the given input; never retried.
	KindBlocked

	// KindEmpty means the model produced no usable output, typically because
	// the audio is too short, corrupt, or an unsupported codec despite a
	// matching MIME type. Never retried.
	KindEmpty
)

// String returns the lowercase label used in logs and metrics attributes.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindBlocked:
		return "blocked"
	case KindEmpty:
		return "empty"
	default:
		return "transport"
	}
}

// Error is the typed failure returned by every [Provider]. Use [AsKind] or
// errors.As to recover the classification.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Msg is a short human-readable description safe to show in logs.
	// User-facing surfaces should map Kind to their own wording instead.
	Msg string

	// Err is the underlying backend error, when one exists.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcribe: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("transcribe: %s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped backend error.
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an [Error] with the given classification.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// AsKind extracts the [Kind] from err. The second return is false when err
// does not carry a transcription classification; callers should treat such
// errors as transport-level.
func AsKind(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return KindTransport, false
}

// IsRetryable reports whether err is a rate-limit failure that the pipeline's
// backoff budget applies to.
func IsRetryable(err error) bool {
	k, ok := AsKind(err)
	return ok && k == KindRateLimited
}

// Request carries one audio segment to a provider.
type Request struct {
	// Data is the raw audio bytes. Providers encode them for transport
	// themselves (base64 inline bytes, multipart upload, etc.).
	Data []byte

	// MIME is the declared content type of Data (e.g., "audio/ogg").
	MIME string
}

// Provider is the abstraction over any hosted transcription backend.
//
// Transcribe issues exactly one logical generate call. It must respect ctx
// cancellation and release any per-call resources on every exit path.
// Failures are returned as [*Error] so the caller can classify them.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (string, error)

	// Name identifies the provider in logs and metrics (e.g., "gemini").
	Name() string
}
