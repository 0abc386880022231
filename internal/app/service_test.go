package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxnote/voxnote/internal/archive"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/internal/transcript"
	"github.com/voxnote/voxnote/internal/transcript/llmrefine"
	llmmock "github.com/voxnote/voxnote/pkg/provider/llm/mock"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	transcribemock "github.com/voxnote/voxnote/pkg/provider/transcribe/mock"
)

// recordingArchiver captures Save calls in memory.
type recordingArchiver struct {
	saved []archive.Record
	err   error
}

func (a *recordingArchiver) Save(_ context.Context, rec archive.Record) (archive.Record, error) {
	a.saved = append(a.saved, rec)
	rec.ID = int64(len(a.saved))
	return rec, a.err
}

func testSubmission(data []byte) Submission {
	return Submission{
		Audio:    pipeline.Audio{Data: data, MIME: "audio/ogg", VoiceNote: true},
		Platform: "telegram",
		ChatID:   "chat-1",
		UserID:   "user-1",
	}
}

func TestService_ProcessInline(t *testing.T) {
	provider := &transcribemock.Provider{Text: "Hello there."}
	svc := NewService(pipeline.NewAssembler(provider))

	d, err := svc.Process(context.Background(), testSubmission([]byte("audio")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Mode != pipeline.ModeInline {
		t.Fatalf("mode = %v, want inline", d.Mode)
	}
	if d.Text != `Hello there\.` {
		t.Errorf("text = %q, want escaped transcript", d.Text)
	}
}

func TestService_ProcessFailurePropagates(t *testing.T) {
	provider := &transcribemock.Provider{
		Err: transcribe.NewError(transcribe.KindBlocked, "safety filter", nil),
	}
	svc := NewService(pipeline.NewAssembler(provider))

	_, err := svc.Process(context.Background(), testSubmission([]byte("audio")))
	kind, ok := transcribe.AsKind(err)
	if !ok || kind != transcribe.KindBlocked {
		t.Fatalf("err = %v, want blocked kind preserved", err)
	}
}

func TestService_CorrectorApplied(t *testing.T) {
	provider := &transcribemock.Provider{Text: "the gravana dashboard is down"}
	svc := NewService(
		pipeline.NewAssembler(provider),
		WithCorrector(transcript.NewCorrector([]string{"Grafana"})),
	)

	d, err := svc.Process(context.Background(), testSubmission([]byte("audio")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Text, "Grafana") {
		t.Errorf("text = %q, want vocabulary correction applied", d.Text)
	}
}

func TestService_RefinerFailureKeepsTranscript(t *testing.T) {
	provider := &transcribemock.Provider{Text: "raw text"}
	llm := &llmmock.Provider{CompleteErr: errors.New("model unavailable")}
	svc := NewService(
		pipeline.NewAssembler(provider),
		WithRefiner(llmrefine.New(llm)),
	)

	d, err := svc.Process(context.Background(), testSubmission([]byte("audio")))
	if err != nil {
		t.Fatalf("refiner failure must not fail the submission: %v", err)
	}
	if d.Text != "raw text" {
		t.Errorf("text = %q, want original transcript on refiner failure", d.Text)
	}
}

func TestService_ArchivesSubmission(t *testing.T) {
	provider := &transcribemock.Provider{Text: "archived words"}
	arch := &recordingArchiver{}
	svc := NewService(pipeline.NewAssembler(provider), WithArchiver(arch))

	sub := testSubmission([]byte("12345"))
	if _, err := svc.Process(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(arch.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(arch.saved))
	}
	rec := arch.saved[0]
	if rec.Platform != "telegram" || rec.ChatID != "chat-1" || rec.UserID != "user-1" {
		t.Errorf("record metadata = %+v, want submission metadata", rec)
	}
	if rec.SizeBytes != 5 {
		t.Errorf("SizeBytes = %d, want 5", rec.SizeBytes)
	}
	if rec.Transcript != "archived words" {
		t.Errorf("Transcript = %q", rec.Transcript)
	}
	if rec.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", rec.Chunks)
	}
}

func TestService_ArchiveFailureDoesNotFailDelivery(t *testing.T) {
	provider := &transcribemock.Provider{Text: "still delivered"}
	arch := &recordingArchiver{err: errors.New("db down")}
	svc := NewService(pipeline.NewAssembler(provider), WithArchiver(arch))

	d, err := svc.Process(context.Background(), testSubmission([]byte("audio")))
	if err != nil {
		t.Fatalf("archive failure must not fail the submission: %v", err)
	}
	if d.Mode != pipeline.ModeInline {
		t.Errorf("mode = %v, want inline", d.Mode)
	}
}

func TestBuildChain_FailsOverOnTransport(t *testing.T) {
	primary := &transcribemock.Provider{
		ProviderName: "primary",
		Err:          transcribe.NewError(transcribe.KindTransport, "unreachable", nil),
	}
	secondary := &transcribemock.Provider{ProviderName: "secondary", Text: "from fallback"}

	mgrA := NewManager("primary", func(context.Context) (transcribe.Provider, error) {
		return primary, nil
	})
	defer mgrA.Close()
	mgrB := NewManager("secondary", func(context.Context) (transcribe.Provider, error) {
		return secondary, nil
	})
	defer mgrB.Close()

	chain := BuildChain(nil,
		ChainEntry{Name: "primary", Manager: mgrA},
		ChainEntry{Name: "secondary", Manager: mgrB},
	)

	text, err := chain.Transcribe(context.Background(), transcribe.Request{MIME: "audio/ogg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from fallback" {
		t.Errorf("text = %q, want from fallback", text)
	}
}
