// Package pipeline implements the transcription request pipeline: size-bounded
// chunking of an audio buffer, the per-chunk model call with retry/backoff
// under rate limiting, ordered assembly of the normalized segments, and the
// inline-vs-file delivery decision.
package pipeline

// DefaultMaxChunkBytes is the hard per-chunk ceiling for model calls: 19 MiB,
// one MiB of margin under the 20 MB platform ingestion ceiling.
const DefaultMaxChunkBytes = 19 << 20

// Audio is one inbound audio submission. Immutable for the duration of a
// pipeline invocation.
type Audio struct {
	// Data is the raw audio bytes.
	Data []byte

	// MIME is the declared content type (e.g., "audio/ogg").
	MIME string

	// Filename is the source recording's filename, when the transport knows
	// one. Used to name file-attachment deliveries.
	Filename string

	// VoiceNote marks recordings captured in-app with no filename; these get
	// a timestamped default name on file delivery.
	VoiceNote bool
}

// Chunk is a contiguous byte-range view over an audio buffer. Data is a
// subslice of the original buffer, not a copy.
type Chunk struct {
	// Index is 1-based.
	Index int

	// Total is the number of chunks the buffer was split into.
	Total int

	// Data is the chunk's byte range.
	Data []byte
}

// Split partitions data into chunks of at most max bytes each. Chunks cover
// the input exactly, in order, with no gaps or overlap; the last chunk holds
// the remainder. A buffer that fits in max yields a single chunk spanning the
// whole input. Zero-length input yields one empty chunk; callers reject empty
// audio before reaching the pipeline.
func Split(data []byte, max int) []Chunk {
	if max <= 0 {
		max = DefaultMaxChunkBytes
	}
	if len(data) <= max {
		return []Chunk{{Index: 1, Total: 1, Data: data}}
	}

	total := (len(data) + max - 1) / max
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * max
		end := start + max
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Index: i + 1, Total: total, Data: data[start:end]})
	}
	return chunks
}
