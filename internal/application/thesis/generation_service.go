package thesis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
	"github.com/tesis/backend/internal/infrastructure/llm"
	"github.com/tesis/backend/internal/infrastructure/logger"
	"github.com/tesis/backend/internal/infrastructure/sectionstream"
	"github.com/tesis/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrGenerationInProgress is returned when this process is already
// generating the thesis
var ErrGenerationInProgress = shared.NewDomainError("CONFLICT", "A generation is already running for this thesis")

// Failure reasons stored on the thesis
const (
	// ReasonCancelled is stored when the client goes away
	ReasonCancelled = "cancelled"
	// ReasonInterrupted is stored when a stale GENERATING thesis is reset
	ReasonInterrupted = "interrupted"
)

const (
	defaultStaleAfter  = 15 * time.Minute
	staleBatchSize     = 100
	persistTimeout     = 10 * time.Second
	defaultTemperature = 0.7
)

// GenerationConfig tunes generation requests
type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
	// StaleAfter is how long a GENERATING thesis without a running
	// generation in this process is trusted before it is reset.
	StaleAfter time.Duration
}

// GenerationService streams LLM output into thesis sections
type GenerationService struct {
	repo     thesis.Repository
	registry *llm.Registry
	prompts  *llm.PromptBuilder
	metrics  *telemetry.GenerationMetrics
	config   GenerationConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewGenerationService creates a GenerationService. metrics may be nil.
func NewGenerationService(
	repo thesis.Repository,
	registry *llm.Registry,
	prompts *llm.PromptBuilder,
	metrics *telemetry.GenerationMetrics,
	config GenerationConfig,
	logger *zap.Logger,
) *GenerationService {
	if config.Temperature <= 0 {
		config.Temperature = defaultTemperature
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaultStaleAfter
	}
	return &GenerationService{
		repo:     repo,
		registry: registry,
		prompts:  prompts,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Generate streams the requested sections of a thesis to sink and
// persists the result. On failure or cancellation the sections completed
// so far are kept and the thesis is marked FAILED.
func (s *GenerationService) Generate(ctx context.Context, ownerID, thesisID uuid.UUID, req GenerateRequest, sink Sink) (*thesis.Thesis, error) {
	return s.run(ctx, ownerID, thesisID, req, false, sink)
}

// RegenerateSection regenerates a single section. Other sections the
// model may emit are ignored.
func (s *GenerationService) RegenerateSection(ctx context.Context, ownerID, thesisID uuid.UUID, section string, req GenerateRequest, sink Sink) (*thesis.Thesis, error) {
	name := thesis.NormalizeSectionName(section)
	if !thesis.ValidSectionName(name) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid section name")
	}
	req.Sections = []string{name}
	return s.run(ctx, ownerID, thesisID, req, true, sink)
}

// Running reports whether this process is generating thesisID
func (s *GenerationService) Running(thesisID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[thesisID]
	return ok
}

func (s *GenerationService) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *GenerationService) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// generation is the state of one run
type generation struct {
	thesis    *thesis.Thesis
	provider  llm.Provider
	model     string
	sections  []thesis.CatalogueEntry
	only      map[string]bool
	parser    *sectionstream.Parser
	assembler *sectionstream.Assembler
	sink      Sink
	streamed  int
	firstByte time.Duration
}

func (s *GenerationService) run(ctx context.Context, ownerID, thesisID uuid.UUID, req GenerateRequest, single bool, sink Sink) (*thesis.Thesis, error) {
	if sink == nil {
		sink = DiscardSink
	}
	provider, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	sections, err := s.prompts.Sections(req.Sections)
	if err != nil {
		return nil, err
	}

	if !s.acquire(thesisID) {
		return nil, ErrGenerationInProgress
	}
	defer s.release(thesisID)

	ctx, span := telemetry.StartServiceSpan(ctx, "generation", "generate",
		telemetry.SpanAttrThesisID, thesisID.String(),
		telemetry.SpanAttrProvider, provider.Name(),
		telemetry.SpanAttrModel, model,
	)
	defer span.End()
	log := logger.Enrich(ctx, s.logger).With(
		zap.String("thesis_id", thesisID.String()),
		zap.String("provider", provider.Name()),
		zap.String("model", model),
	)

	t, err := s.repo.FindByIDForOwner(ctx, ownerID, thesisID)
	if err != nil {
		return nil, err
	}
	if err := s.resetStale(ctx, t, log); err != nil {
		return nil, err
	}
	if err := t.StartGeneration(provider.Name(), model); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	g := &generation{
		thesis:    t,
		provider:  provider,
		model:     model,
		sections:  sections,
		parser:    sectionstream.NewParser(),
		assembler: sectionstream.NewAssembler(),
		sink:      sink,
	}
	if single {
		g.only = map[string]bool{sections[0].Name: true}
	}

	start := time.Now()
	s.metrics.Started(provider.Name())
	log.Info("Generation started", zap.Int("sections", len(sections)))

	streamErr := s.stream(ctx, g, start)
	outcome := telemetry.OutcomeSuccess
	if streamErr != nil {
		outcome = telemetry.OutcomeFailed
		if isCancellation(ctx, streamErr) {
			outcome = telemetry.OutcomeCancelled
		}
	}
	elapsed := time.Since(start)
	s.metrics.Finished(provider.Name(), outcome, elapsed)
	s.metrics.Streamed(provider.Name(), g.streamed)
	telemetry.SetAttributes(span, telemetry.SpanAttrBytes, g.streamed, "outcome", outcome)

	if pre := g.parser.Preamble(); pre > 0 {
		log.Debug("Discarded text before first section marker", zap.Int("bytes", pre))
	}

	completed, failed := s.apply(g, log)

	// the request context may already be gone
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if streamErr == nil {
		if err := t.CompleteGeneration(); err != nil {
			return nil, err
		}
		if err := s.repo.Update(saveCtx, t); err != nil {
			telemetry.RecordError(span, err)
			log.Error("Failed to persist generated thesis", zap.Error(err))
			s.persistFailure(saveCtx, t, err, log)
			return nil, err
		}
		log.Info("Generation finished",
			zap.Int("completed", len(completed)),
			zap.Int("failed", len(failed)),
			zap.Int("bytes", g.streamed),
			zap.Duration("first_chunk", g.firstByte),
			zap.Duration("duration", elapsed))
		_ = sink.Send(s.doneEvent(g, completed, failed, elapsed))
		return t, nil
	}

	reason := streamErr.Error()
	if outcome == telemetry.OutcomeCancelled {
		reason = ReasonCancelled
	}
	if err := t.FailGeneration(reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(saveCtx, t); err != nil {
		log.Error("Failed to persist failed generation", zap.Error(err))
	}

	telemetry.RecordError(span, streamErr)
	log.Warn("Generation failed",
		zap.String("reason", reason),
		zap.Int("completed", len(completed)),
		zap.Error(streamErr))
	_ = sink.Send(s.doneEvent(g, completed, failed, elapsed))

	if outcome == telemetry.OutcomeCancelled {
		return t, context.Canceled
	}
	return t, streamErr
}

func (s *GenerationService) stream(ctx context.Context, g *generation, start time.Time) error {
	system, user, err := s.prompts.Build(g.thesis.Metadata, g.sections)
	if err != nil {
		return err
	}

	var sinkErr error
	err = g.provider.Stream(ctx, llm.Request{
		Model:           g.model,
		SystemPrompt:    system,
		Prompt:          user,
		Temperature:     s.config.Temperature,
		MaxOutputTokens: s.config.MaxOutputTokens,
	}, func(chunk string) error {
		if g.streamed == 0 && chunk != "" {
			g.firstByte = time.Since(start)
		}
		g.streamed += len(chunk)
		if err := s.forward(g, g.parser.Feed(chunk)); err != nil {
			sinkErr = err
			return err
		}
		return nil
	})
	if err != nil {
		if sinkErr != nil {
			return errSinkClosed{sinkErr}
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// only a complete stream may close the open section
	if err := s.forward(g, g.parser.Flush()); err != nil {
		return errSinkClosed{err}
	}
	return nil
}

func (s *GenerationService) forward(g *generation, events []sectionstream.Event) error {
	for _, ev := range events {
		if g.only != nil && !g.only[ev.Section] {
			continue
		}
		g.assembler.Apply(ev)
		out := Event{Type: ev.Kind.String(), Section: ev.Section}
		switch ev.Kind {
		case sectionstream.EventDelta:
			out.Text = ev.Text
		case sectionstream.EventError:
			out.Message = ev.Message
			s.metrics.SectionError(g.provider.Name())
		}
		if err := g.sink.Send(out); err != nil {
			return err
		}
	}
	return nil
}

// apply copies assembled sections and error blocks into the thesis
func (s *GenerationService) apply(g *generation, log *zap.Logger) (completed, failed []string) {
	for _, sec := range g.assembler.Sections() {
		if err := g.thesis.ApplyGeneratedSection(sec.Name, sec.Content); err != nil {
			log.Warn("Skipping generated section", zap.String("section", sec.Name), zap.Error(err))
			continue
		}
		completed = append(completed, sec.Name)
	}
	for _, e := range g.assembler.Errors() {
		if err := g.thesis.MarkSectionError(e.Name, e.Message); err != nil {
			log.Warn("Skipping section error", zap.String("section", e.Name), zap.Error(err))
			continue
		}
		failed = append(failed, e.Name)
	}
	return completed, failed
}

func (s *GenerationService) doneEvent(g *generation, completed, failed []string, elapsed time.Duration) Event {
	return Event{
		Type:      EventDone,
		Status:    g.thesis.Status,
		Reason:    g.thesis.FailureReason,
		Provider:  g.provider.Name(),
		Model:     g.model,
		Completed: completed,
		Failed:    failed,
		Version:   g.thesis.Version,
		Duration:  elapsed,
		Elapsed:   elapsed.Milliseconds(),
	}
}

// persistFailure records a completed generation whose save failed, so the
// thesis does not stay GENERATING until the stale sweep.
func (s *GenerationService) persistFailure(ctx context.Context, t *thesis.Thesis, cause error, log *zap.Logger) {
	if err := t.AbortCompletion("failed to save generated sections: " + cause.Error()); err != nil {
		return
	}
	if err := s.repo.Update(ctx, t); err != nil {
		log.Error("Failed to persist failed generation", zap.Error(err))
	}
}

// resetStale fails a thesis left GENERATING by a process that died
func (s *GenerationService) resetStale(ctx context.Context, t *thesis.Thesis, log *zap.Logger) error {
	if !t.IsGenerating() || time.Since(t.UpdatedAt) < s.config.StaleAfter {
		return nil
	}
	log.Warn("Resetting stale generation", zap.Time("updated_at", t.UpdatedAt))
	if err := t.FailGeneration(ReasonInterrupted); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

// ResetStaleGenerations marks FAILED every thesis left GENERATING for
// longer than StaleAfter that this process is not generating. Rows changed
// concurrently are skipped. It returns how many theses were reset.
func (s *GenerationService) ResetStaleGenerations(ctx context.Context) (int, error) {
	stale, err := s.repo.FindStaleGenerating(ctx, time.Now().Add(-s.config.StaleAfter), staleBatchSize)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, t := range stale {
		if s.Running(t.ID) {
			continue
		}
		log := s.logger.With(zap.String("thesis_id", t.ID.String()))
		err := s.resetStale(ctx, t, log)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			log.Debug("Stale thesis changed while resetting, skipped")
			continue
		}
		if err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

type errSinkClosed struct{ err error }

func (e errSinkClosed) Error() string { return "client stream closed: " + e.err.Error() }
func (e errSinkClosed) Unwrap() error { return e.err }

func isCancellation(ctx context.Context, err error) bool {
	var sc errSinkClosed
	return errors.As(err, &sc) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(ctx.Err(), context.Canceled)
}
