package config

import (
	"context"
	"errors"
	"testing"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	transcribemock "github.com/voxnote/voxnote/pkg/provider/transcribe/mock"
)

func TestRegistry_CreateTranscribe(t *testing.T) {
	r := NewRegistry()

	var gotEntry ProviderEntry
	r.RegisterTranscribe("mock", func(_ context.Context, entry ProviderEntry) (transcribe.Provider, error) {
		gotEntry = entry
		return &transcribemock.Provider{}, nil
	})

	entry := ProviderEntry{Name: "mock", APIKey: "k", Model: "m"}
	p, err := r.CreateTranscribe(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("provider is nil")
	}
	if gotEntry.APIKey != "k" || gotEntry.Model != "m" {
		t.Errorf("factory received %+v, want the full entry", gotEntry)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.CreateTranscribe(context.Background(), ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateLLM(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateEmbeddings(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry()

	first := &transcribemock.Provider{ProviderName: "first"}
	second := &transcribemock.Provider{ProviderName: "second"}
	r.RegisterTranscribe("x", func(context.Context, ProviderEntry) (transcribe.Provider, error) {
		return first, nil
	})
	r.RegisterTranscribe("x", func(context.Context, ProviderEntry) (transcribe.Provider, error) {
		return second, nil
	})

	p, err := r.CreateTranscribe(context.Background(), ProviderEntry{Name: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "second" {
		t.Errorf("Name() = %q, want the later registration to win", p.Name())
	}
}
