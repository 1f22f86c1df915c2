package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
	"github.com/kirillkom/rag-context-engine/internal/observability/metrics"
)

type Router struct {
	builder ports.ContextBuilder
	metrics *metrics.HTTPServerMetrics
	service string

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(builder ports.ContextBuilder, m *metrics.HTTPServerMetrics, options RouterOptions) *Router {
	service := options.Service
	if service == "" {
		service = "rag-context-engine"
	}
	return &Router{
		builder:        builder,
		metrics:        m,
		service:        service,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/context", rt.buildContext)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type contextRequest struct {
	Question   string                    `json:"question"`
	History    []domain.ConversationTurn `json:"history"`
	ModelID    string                    `json:"model_id"`
	CandidateK int                       `json:"candidate_k"`
	Flags      domain.FeatureFlags       `json:"flags"`
}

func (rt *Router) buildContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	result, err := rt.builder.BuildContext(r.Context(), domain.RetrievalRequest{
		Question:   req.Question,
		History:    req.History,
		ModelID:    req.ModelID,
		CandidateK: req.CandidateK,
		Flags:      req.Flags,
	})
	rt.observePipeline(result, time.Since(start), err)

	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("build_context_failed",
				"request_id", requestIDFromContext(r.Context()),
				"status", status,
				"error", err,
			)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) observePipeline(result *domain.ContextResult, duration time.Duration, err error) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordPipelineRun(rt.service, duration, err)
	if result == nil {
		return
	}
	rt.metrics.RecordRetrievedCandidates(rt.service, result.Window.Selection.CandidatesIn)
	rt.metrics.RecordContextChunks(rt.service, result.Guardrail.IncludedChunks)
	if result.Guardrail.RetrievalSkipped() {
		rt.metrics.RecordGuardrailSkip(rt.service, string(result.Guardrail.Intent))
	}
	if result.Guardrail.InsufficientEvidence {
		rt.metrics.RecordInsufficientEvidence(rt.service)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
