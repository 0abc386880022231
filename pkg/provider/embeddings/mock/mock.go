// Package mock provides a test double for the embeddings.Provider interface.
//
// The mock produces deterministic vectors derived from the input text, so
// tests can assert stable similarity orderings without a live backend.
package mock

import (
	"context"
	"sync"

	"github.com/voxnote/voxnote/pkg/provider/embeddings"
)

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Dim is the vector dimensionality. Defaults to 4 when zero.
	Dim int

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	// Vectors maps input text to a fixed vector. Texts not present fall back
	// to a deterministic hash-derived vector.
	Vectors map[string][]float32

	// Embedded records every text passed to Embed or EmbedBatch, in order.
	Embedded []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Embedded = append(p.Embedded, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Embedded = append(p.Embedded, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dim <= 0 {
		return 4
	}
	return p.Dim
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embeddings" }

// vectorFor returns the configured or derived vector for text. Must be called
// with p.mu held.
func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return v
	}
	dim := p.Dim
	if dim <= 0 {
		dim = 4
	}
	// FNV-style rolling hash spread across the vector.
	v := make([]float32, dim)
	var h uint32 = 2166136261
	for i := 0; i < len(text); i++ {
		h = (h ^ uint32(text[i])) * 16777619
		v[i%dim] += float32(h%1000) / 1000
	}
	return v
}
