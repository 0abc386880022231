package app

import (
	"context"
	"time"

	"github.com/voxnote/voxnote/internal/archive"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/internal/resilience"
	"github.com/voxnote/voxnote/internal/transcript"
	"github.com/voxnote/voxnote/internal/transcript/llmrefine"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// Archiver is the subset of the transcript archive the service needs. A nil
// Archiver disables archiving entirely.
type Archiver interface {
	Save(ctx context.Context, rec archive.Record) (archive.Record, error)
}

// Submission is one piece of audio handed over by a transport, together with
// the metadata the archive keeps.
type Submission struct {
	Audio    pipeline.Audio
	Platform string
	ChatID   string
	UserID   string
}

// ServiceOption is a functional option for configuring a [Service].
type ServiceOption func(*Service)

// WithCorrector attaches a phonetic vocabulary corrector, applied to every
// assembled transcript before delivery.
func WithCorrector(c *transcript.Corrector) ServiceOption {
	return func(s *Service) { s.corrector = c }
}

// WithRefiner attaches an LLM refinement pass. Refinement is best-effort: on
// provider failure the transcript is delivered unrefined.
func WithRefiner(r *llmrefine.Refiner) ServiceOption {
	return func(s *Service) { s.refiner = r }
}

// WithArchiver attaches a transcript archive. Archiving is best-effort and
// never fails a delivery.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithVocabulary sets the domain term list passed to the refiner.
func WithVocabulary(terms []string) ServiceOption {
	return func(s *Service) { s.vocabulary = terms }
}

// WithServiceMetrics attaches a metrics sink for delivery counters.
func WithServiceMetrics(m *observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// Service runs the shared per-submission flow for every transport: assemble
// the transcript, apply the optional correction and refinement passes,
// archive the result, and decide the delivery mode. Transports own everything
// before (MIME pre-check, download) and after (actually sending the message
// or document).
//
// Service is safe for concurrent use.
type Service struct {
	assembler  *pipeline.Assembler
	corrector  *transcript.Corrector
	refiner    *llmrefine.Refiner
	archiver   Archiver
	vocabulary []string
	metrics    *observe.Metrics
	now        func() time.Time
}

// NewService creates a Service around assembler. Correction, refinement and
// archiving are all opt-in.
func NewService(assembler *pipeline.Assembler, opts ...ServiceOption) *Service {
	s := &Service{
		assembler: assembler,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process transcribes one submission end to end and returns the delivery
// decision. Transcription failures abort the submission; correction,
// refinement and archiving failures are logged and do not.
func (s *Service) Process(ctx context.Context, sub Submission) (pipeline.Delivery, error) {
	ctx, span := observe.StartSpan(ctx, "app.process")
	defer span.End()
	log := observe.Logger(ctx)

	t, err := s.assembler.Assemble(ctx, sub.Audio)
	if err != nil {
		return pipeline.Delivery{}, err
	}

	if s.corrector != nil {
		corrected, corrections := s.corrector.Correct(t.Text)
		if len(corrections) > 0 {
			log.Info("applied vocabulary corrections",
				"count", len(corrections),
			)
		}
		t.Text = corrected
	}

	if s.refiner != nil {
		refined, err := s.refiner.Refine(ctx, t.Text, s.vocabulary)
		if err != nil {
			// Refinement failure is not worth losing the transcript over.
			log.Warn("transcript refinement failed, delivering unrefined",
				"error", err,
			)
		}
		t.Text = refined
	}

	if s.archiver != nil {
		_, err := s.archiver.Save(ctx, archive.Record{
			Platform:   sub.Platform,
			ChatID:     sub.ChatID,
			UserID:     sub.UserID,
			Filename:   sub.Audio.Filename,
			MIME:       sub.Audio.MIME,
			SizeBytes:  int64(len(sub.Audio.Data)),
			Chunks:     t.Chunks,
			Transcript: t.Text,
		})
		if err != nil {
			log.Warn("failed to archive transcript", "error", err)
		}
	}

	d := pipeline.SelectDelivery(t, sub.Audio, s.now())
	if s.metrics != nil {
		s.metrics.RecordDelivery(ctx, d.Mode.String())
	}
	return d, nil
}

// ChainEntry is one transcription backend in the provider chain: a managed
// handle plus the name the fallback group reports it under.
type ChainEntry struct {
	Name    string
	Manager *Manager
}

// BuildChain assembles the production provider chain: each backend's managed
// handle is wrapped in a rate-limit retrier, and the wrapped providers form a
// circuit-broken fallback group in the given order. The first entry is the
// primary.
func BuildChain(metrics *observe.Metrics, primary ChainEntry, fallbacks ...ChainEntry) transcribe.Provider {
	wrap := func(e ChainEntry) transcribe.Provider {
		opts := []pipeline.RetryOption{}
		if metrics != nil {
			opts = append(opts, pipeline.WithRetryMetrics(metrics))
		}
		return pipeline.NewRetrier(Managed(e.Manager), opts...)
	}

	group := resilience.NewTranscribeFallback(wrap(primary), primary.Name, resilience.FallbackConfig{})
	for _, f := range fallbacks {
		group.AddFallback(f.Name, wrap(f))
	}
	return group
}
