package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxnote/voxnote/pkg/provider/embeddings"
)

// defaultEmbeddingDimensions matches OpenAI text-embedding-3-small.
const defaultEmbeddingDimensions = 1536

// ddlTranscripts returns the archive DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time; changing it later requires a manual migration.
func ddlTranscripts(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS transcripts (
    id          BIGSERIAL    PRIMARY KEY,
    platform    TEXT         NOT NULL,
    chat_id     TEXT         NOT NULL,
    user_id     TEXT         NOT NULL DEFAULT '',
    filename    TEXT         NOT NULL DEFAULT '',
    mime        TEXT         NOT NULL DEFAULT '',
    size_bytes  BIGINT       NOT NULL DEFAULT 0,
    chunks      INT          NOT NULL DEFAULT 1,
    transcript  TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_chat
    ON transcripts (platform, chat_id, created_at);

CREATE INDEX IF NOT EXISTS idx_transcripts_fts
    ON transcripts USING GIN (to_tsvector('english', transcript));
`, embeddingDimensions)
}

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithEmbedder attaches an embeddings provider. When set, Save computes and
// stores an embedding for every transcript and SearchSemantic becomes
// available.
func WithEmbedder(e embeddings.Provider) Option {
	return func(s *Store) { s.embedder = e }
}

// WithEmbeddingDimensions overrides the vector column dimension.
// Default: 1536. Must match the embedder's model.
func WithEmbeddingDimensions(d int) Option {
	return func(s *Store) {
		if d > 0 {
			s.dims = d
		}
	}
}

// Store is the PostgreSQL-backed transcript archive. All operations are safe
// for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
	dims     int
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs the
// schema migration.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{dims: defaultEmbeddingDimensions}
	for _, o := range opts {
		o(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so the embedding
	// column scans into and inserts from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	s.pool = pool

	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return s, nil
}

// Migrate ensures the archive schema exists. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, ddlTranscripts(s.dims))
	return err
}

// Save stores rec and returns it with ID and CreatedAt populated. Embedding
// computation is best-effort: on embedder failure the record is stored
// without a vector and the error is logged, not returned.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	var vec *pgvector.Vector
	if s.embedder != nil && rec.Transcript != "" {
		emb, err := s.embedder.Embed(ctx, rec.Transcript)
		if err != nil {
			slog.Warn("archive: embedding failed, storing without vector",
				"error", err)
		} else {
			v := pgvector.NewVector(emb)
			vec = &v
		}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO transcripts
		    (platform, chat_id, user_id, filename, mime, size_bytes, chunks, transcript, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		rec.Platform, rec.ChatID, rec.UserID, rec.Filename, rec.MIME,
		rec.SizeBytes, rec.Chunks, rec.Transcript, vec,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return rec, fmt.Errorf("archive: insert transcript: %w", err)
	}
	return rec, nil
}

// Recent returns the latest transcripts for a chat, newest first.
func (s *Store) Recent(ctx context.Context, platform, chatID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, platform, chat_id, user_id, filename, mime, size_bytes, chunks, transcript, created_at
		FROM   transcripts
		WHERE  platform = $1 AND chat_id = $2
		ORDER BY created_at DESC
		LIMIT  $3`,
		platform, chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("archive: collect recent: %w", err)
	}
	return recs, nil
}

// SearchText performs full-text search over archived transcripts for a chat,
// ranked by relevance.
func (s *Store) SearchText(ctx context.Context, platform, chatID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, platform, chat_id, user_id, filename, mime, size_bytes, chunks, transcript, created_at,
		       ts_rank(to_tsvector('english', transcript),
		               plainto_tsquery('english', $3)) AS rank
		FROM   transcripts
		WHERE  platform = $1 AND chat_id = $2
		  AND  to_tsvector('english', transcript) @@ plainto_tsquery('english', $3)
		ORDER BY rank DESC
		LIMIT  $4`,
		platform, chatID, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: text search: %w", err)
	}
	results, err := pgx.CollectRows(rows, scanSearchResult)
	if err != nil {
		return nil, fmt.Errorf("archive: collect text search: %w", err)
	}
	return results, nil
}

// SearchSemantic performs nearest-neighbour search over transcript
// embeddings. Requires an embedder; returns an error when none is
// configured.
func (s *Store) SearchSemantic(ctx context.Context, platform, chatID, query string, limit int) ([]SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("archive: semantic search requires an embeddings provider")
	}
	if limit <= 0 {
		limit = 10
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("archive: embed query: %w", err)
	}
	queryVec := pgvector.NewVector(emb)

	rows, err := s.pool.Query(ctx, `
		SELECT id, platform, chat_id, user_id, filename, mime, size_bytes, chunks, transcript, created_at,
		       embedding <=> $3 AS distance
		FROM   transcripts
		WHERE  platform = $1 AND chat_id = $2
		  AND  embedding IS NOT NULL
		ORDER BY distance
		LIMIT  $4`,
		platform, chatID, queryVec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: semantic search: %w", err)
	}
	results, err := pgx.CollectRows(rows, scanSearchResult)
	if err != nil {
		return nil, fmt.Errorf("archive: collect semantic search: %w", err)
	}
	return results, nil
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// scanRecord maps a transcripts row without a score column.
func scanRecord(row pgx.CollectableRow) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.Platform, &r.ChatID, &r.UserID, &r.Filename,
		&r.MIME, &r.SizeBytes, &r.Chunks, &r.Transcript, &r.CreatedAt)
	return r, err
}

// scanSearchResult maps a transcripts row with a trailing score column.
func scanSearchResult(row pgx.CollectableRow) (SearchResult, error) {
	var sr SearchResult
	err := row.Scan(&sr.Record.ID, &sr.Record.Platform, &sr.Record.ChatID,
		&sr.Record.UserID, &sr.Record.Filename, &sr.Record.MIME,
		&sr.Record.SizeBytes, &sr.Record.Chunks, &sr.Record.Transcript,
		&sr.Record.CreatedAt, &sr.Score)
	return sr, err
}
