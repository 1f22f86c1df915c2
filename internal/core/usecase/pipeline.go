package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
)

// ContextPipeline composes the stages into one request-scoped run:
// guardrail, enhance, retrieve, rank, window, citations. The executor
// owns cancellation checks at stage boundaries and span emission; spans
// never block the critical path.
type ContextPipeline struct {
	settings  ports.SettingsProvider
	enhancer  *QueryEnhancer
	retriever *Retriever
	ranker    *Ranker
	assembler *WindowAssembler
	tracer    ports.TraceSink
}

func NewContextPipeline(
	settings ports.SettingsProvider,
	enhancer *QueryEnhancer,
	retriever *Retriever,
	ranker *Ranker,
	assembler *WindowAssembler,
	tracer ports.TraceSink,
) *ContextPipeline {
	return &ContextPipeline{
		settings:  settings,
		enhancer:  enhancer,
		retriever: retriever,
		ranker:    ranker,
		assembler: assembler,
		tracer:    tracer,
	}
}

type pipelineState struct {
	req      domain.RetrievalRequest
	settings domain.RetrievalSettings

	requestID  string
	rankerMode string

	guardrail   domain.GuardrailDecision
	enhanced    domain.EnhancedQuery
	plan        domain.KPlan
	queryVector []float32
	enriched    []domain.EnrichedCandidate
	ranked      []domain.RankedCandidate
	diversity   bool
	window      domain.ContextWindowResult
	citations   domain.CitationPayload
}

type pipelineStage struct {
	name string
	run  func(ctx context.Context, st *pipelineState) error
}

func (p *ContextPipeline) BuildContext(ctx context.Context, req domain.RetrievalRequest) (*domain.ContextResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build context", fmt.Errorf("question is required"))
	}

	settings, err := p.settings.Snapshot(ctx)
	if err != nil {
		slog.Warn("settings_snapshot_failed", "error", err)
		settings = domain.DefaultRetrievalSettings()
	}
	settings, warnings := settings.Normalize()
	for _, warning := range warnings {
		slog.Warn("settings_clamped", "detail", warning)
	}

	st := &pipelineState{
		req:        req,
		settings:   settings,
		requestID:  uuid.NewString(),
		rankerMode: resolveRankerMode(req.Flags.RankerMode, settings.RankerMode),
	}

	for _, stage := range p.stages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		err := stage.run(ctx, st)
		p.emitSpan(stage.name, st, start, err)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return &domain.ContextResult{
		RequestID: st.requestID,
		Guardrail: st.guardrail,
		Enhanced:  st.enhanced,
		Plan:      st.plan,
		Window:    st.window,
		Citations: st.citations,
	}, nil
}

func (p *ContextPipeline) stages() []pipelineStage {
	return []pipelineStage{
		{name: "guardrail", run: p.stageGuardrail},
		{name: "enhance", run: p.stageEnhance},
		{name: "retrieve", run: p.stageRetrieve},
		{name: "rank", run: p.stageRank},
		{name: "window", run: p.stageWindow},
		{name: "citations", run: p.stageCitations},
	}
}

func (p *ContextPipeline) stageGuardrail(_ context.Context, st *pipelineState) error {
	st.guardrail = classifyIntent(st.req.Question, st.settings)
	if st.guardrail.RetrievalSkipped() {
		slog.Info("retrieval_skipped",
			"request_id", st.requestID,
			"intent", st.guardrail.Intent,
			"reason", st.guardrail.ReasonCode,
		)
	}
	return nil
}

func (p *ContextPipeline) stageEnhance(ctx context.Context, st *pipelineState) error {
	if st.guardrail.RetrievalSkipped() {
		question := strings.TrimSpace(st.req.Question)
		st.enhanced = domain.EnhancedQuery{OriginalQuestion: question, RewrittenQuery: question}
		return nil
	}
	st.enhanced = p.enhancer.Enhance(ctx, st.req)
	return nil
}

func (p *ContextPipeline) stageRetrieve(ctx context.Context, st *pipelineState) error {
	rerankEnabled := st.rankerMode != domain.RankerModeNone
	st.plan = normalizeKPlan(st.settings, st.req.CandidateK, rerankEnabled)
	if st.guardrail.RetrievalSkipped() {
		return nil
	}

	enriched, queryVector, err := p.retriever.Retrieve(ctx, st.enhanced, st.plan, st.settings)
	if err != nil {
		return err
	}
	st.enriched = enriched
	st.queryVector = queryVector
	return nil
}

func (p *ContextPipeline) stageRank(ctx context.Context, st *pipelineState) error {
	if st.guardrail.RetrievalSkipped() || len(st.enriched) == 0 {
		return nil
	}
	st.ranked, st.diversity = p.ranker.Rank(ctx, st.rankerMode, st.enhanced.RewrittenQuery, st.enriched, st.plan, st.settings.MMRLambda)
	return nil
}

func (p *ContextPipeline) stageWindow(_ context.Context, st *pipelineState) error {
	ranked := st.ranked
	if len(ranked) > st.plan.FinalK {
		ranked = ranked[:st.plan.FinalK]
	}
	st.window = p.assembler.Assemble(ranked, st.req.History, st.settings, st.diversity)
	return nil
}

func (p *ContextPipeline) stageCitations(_ context.Context, st *pipelineState) error {
	st.citations = aggregateCitations(st.window, st.settings)
	st.guardrail = assessEvidence(st.guardrail, st.window, st.settings.SimilarityThreshold)
	return nil
}

// emitSpan hands the record to the sink on its own goroutine; a nil
// sink changes nothing.
func (p *ContextPipeline) emitSpan(name string, st *pipelineState, start time.Time, stageErr error) {
	if p.tracer == nil {
		return
	}
	metadata := map[string]any{
		"intent":      string(st.guardrail.Intent),
		"ranker_mode": st.rankerMode,
		"candidates":  len(st.enriched),
		"ranked":      len(st.ranked),
	}
	if stageErr != nil {
		metadata["error"] = stageErr.Error()
	}
	span := ports.TraceSpan{
		Name:      "pipeline." + name,
		RequestID: st.requestID,
		Metadata:  metadata,
		StartTime: start,
		EndTime:   time.Now(),
	}
	go p.tracer.Emit(span)
}
