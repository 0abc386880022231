package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/transcript"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// Transcript is the final ordered, normalized text produced from all chunks
// of one audio submission.
type Transcript struct {
	// Text is the full assembled transcript.
	Text string

	// Chunks is the number of model calls the submission required.
	Chunks int
}

// AssemblerOption is a functional option for configuring an [Assembler].
type AssemblerOption func(*Assembler)

// WithMaxChunkBytes overrides the per-chunk size ceiling.
// Default: [DefaultMaxChunkBytes].
func WithMaxChunkBytes(n int) AssemblerOption {
	return func(a *Assembler) { a.maxChunkBytes = n }
}

// WithMetrics attaches a metrics sink. When nil (the default), no metrics are
// recorded.
func WithMetrics(m *observe.Metrics) AssemblerOption {
	return func(a *Assembler) { a.metrics = m }
}

// Assembler runs the full per-submission pipeline: split the audio into
// size-bounded chunks, transcribe each chunk in index order through the
// configured provider chain, normalize each segment, and concatenate.
//
// Chunks are processed strictly sequentially. This keeps the retry backoff
// pacing meaningful and bounds concurrent load on the external model.
//
// Assembler is safe for concurrent use; concurrent submissions share no
// per-request state.
type Assembler struct {
	provider      transcribe.Provider
	maxChunkBytes int
	metrics       *observe.Metrics
}

// NewAssembler creates an [Assembler] around provider, which is typically a
// [Retrier]-wrapped fallback group rather than a bare backend.
func NewAssembler(provider transcribe.Provider, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		provider:      provider,
		maxChunkBytes: DefaultMaxChunkBytes,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble transcribes audio and returns the assembled transcript. The first
// unrecoverable chunk failure aborts the whole submission and discards any
// text already produced; a partial transcript is unusable output.
func (a *Assembler) Assemble(ctx context.Context, audio Audio) (Transcript, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.assemble")
	defer span.End()

	start := time.Now()
	chunks := Split(audio.Data, a.maxChunkBytes)

	if len(chunks) > 1 {
		slog.Info("audio exceeds chunk ceiling, splitting",
			"bytes", len(audio.Data),
			"chunks", len(chunks),
			"mime", audio.MIME,
		)
	}

	segments := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		raw, err := a.provider.Transcribe(ctx, transcribe.Request{
			Data: chunk.Data,
			MIME: audio.MIME,
		})
		if err != nil {
			if a.metrics != nil {
				kind, _ := transcribe.AsKind(err)
				a.metrics.RecordTranscription(ctx, a.provider.Name(), kind.String())
			}
			return Transcript{}, fmt.Errorf("chunk %d/%d: %w", chunk.Index, chunk.Total, err)
		}

		slog.Debug("chunk transcribed",
			"chunk", chunk.Index,
			"total", chunk.Total,
			"raw_chars", len(raw),
		)
		segments = append(segments, transcript.Normalize(raw, chunk.Index == 1))
	}

	t := Transcript{Text: joinSegments(segments), Chunks: len(chunks)}

	if a.metrics != nil {
		a.metrics.RecordTranscription(ctx, a.provider.Name(), "ok")
		a.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
		a.metrics.ChunksPerRequest.Record(ctx, int64(len(chunks)))
	}
	return t, nil
}

// joinSegments concatenates normalized segments with a blank line between
// them, skipping segments that normalized down to nothing.
func joinSegments(segments []string) string {
	var b []byte
	for _, s := range segments {
		if s == "" {
			continue
		}
		if len(b) > 0 {
			b = append(b, "\n\n"...)
		}
		b = append(b, s...)
	}
	return string(b)
}
