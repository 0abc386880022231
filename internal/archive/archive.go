// Package archive provides a PostgreSQL-backed store of finished
// transcriptions. Each delivered transcript is saved with its submission
// metadata and, when an embeddings provider is configured, a vector embedding
// for semantic search. The pgvector extension must be available in the target
// database; [Store.Migrate] installs it automatically via CREATE EXTENSION IF
// NOT EXISTS.
package archive

import "time"

// Record is one archived transcription.
type Record struct {
	// ID is the database-assigned identifier. Zero until saved.
	ID int64

	// Platform is the transport the audio arrived on ("telegram" or
	// "discord").
	Platform string

	// ChatID identifies the chat/channel the audio was posted in.
	ChatID string

	// UserID identifies the submitting user.
	UserID string

	// Filename is the original attachment name; empty for voice notes.
	Filename string

	// MIME is the declared audio type.
	MIME string

	// SizeBytes is the audio payload size.
	SizeBytes int64

	// Chunks is how many model calls the submission required.
	Chunks int

	// Transcript is the final delivered text.
	Transcript string

	// CreatedAt is when the record was stored.
	CreatedAt time.Time
}

// SearchResult pairs a record with its relevance score. For full-text search
// Score is a ts_rank value; for semantic search it is the cosine distance
// (lower is closer).
type SearchResult struct {
	Record Record
	Score  float64
}
