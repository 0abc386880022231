package resilience

import (
	"context"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// TranscribeFallback implements [transcribe.Provider] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker. Content-caused errors (blocked audio, empty responses) are final:
// they bypass failover because a different backend would hit the same wall.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend. The config's Final classifier is forced to the
// transcription error taxonomy regardless of what the caller set.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	cfg.Final = isContentError
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Name implements transcribe.Provider.
func (f *TranscribeFallback) Name() string {
	if len(f.group.entries) == 1 {
		return f.group.entries[0].name
	}
	return "fallback-group"
}

// Transcribe runs the request against the first healthy provider in the group.
func (f *TranscribeFallback) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (string, error) {
		return p.Transcribe(ctx, req)
	})
}

// isContentError reports whether err was caused by the submitted audio rather
// than provider infrastructure.
func isContentError(err error) bool {
	kind, ok := transcribe.AsKind(err)
	if !ok {
		return false
	}
	return kind == transcribe.KindBlocked || kind == transcribe.KindEmpty
}
