package archive

import (
	"strings"
	"testing"
)

func TestDDLTranscripts_DimensionSubstitution(t *testing.T) {
	ddl := ddlTranscripts(768)
	if !strings.Contains(ddl, "vector(768)") {
		t.Errorf("ddl missing vector(768):\n%s", ddl)
	}
	if !strings.Contains(ddl, "CREATE EXTENSION IF NOT EXISTS vector") {
		t.Error("ddl must install the pgvector extension")
	}
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS transcripts") {
		t.Error("ddl must be idempotent (CREATE TABLE IF NOT EXISTS)")
	}
}

func TestWithEmbeddingDimensions_IgnoresNonPositive(t *testing.T) {
	s := &Store{dims: defaultEmbeddingDimensions}
	WithEmbeddingDimensions(0)(s)
	if s.dims != defaultEmbeddingDimensions {
		t.Errorf("dims = %d, want default retained for zero input", s.dims)
	}
	WithEmbeddingDimensions(3072)(s)
	if s.dims != 3072 {
		t.Errorf("dims = %d, want 3072", s.dims)
	}
}
