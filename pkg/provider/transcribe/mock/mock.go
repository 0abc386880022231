// Package mock provides a test double for the transcribe package interfaces.
//
// Pre-populate Results with the values each successive call should return;
// once the scripted results are exhausted, Text and Err are used for every
// further call. Calls records every invocation for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// Ensure Provider implements transcribe.Provider at compile time.
var _ transcribe.Provider = (*Provider)(nil)

// Result scripts the outcome of a single Transcribe call.
type Result struct {
	Text string
	Err  error
}

// Call records a single invocation of Provider.Transcribe.
type Call struct {
	// MIME is the MIME hint passed with the request.
	MIME string

	// Size is the length of the audio payload. The bytes themselves are not
	// retained to keep large-blob tests cheap.
	Size int
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Results is consumed one entry per call, in order.
	Results []Result

	// Text and Err are returned once Results is exhausted (or empty).
	Text string
	Err  error

	// Calls records every Transcribe invocation in order.
	Calls []Call
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Transcribe records the call and returns the next scripted result.
func (p *Provider) Transcribe(_ context.Context, req transcribe.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{MIME: req.MIME, Size: len(req.Data)})

	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r.Text, r.Err
	}
	return p.Text, p.Err
}

// CallCount returns the number of Transcribe invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
