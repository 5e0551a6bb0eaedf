package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/illustrator/internal/imagegen"
	"github.com/local/illustrator/internal/planner"
	"github.com/local/illustrator/internal/rehost"
	"github.com/local/illustrator/internal/statuscheck"
	"github.com/local/illustrator/internal/store"
)

// ContentStore is the owning collaborator for materials: it resolves article
// text and receives the finished illustration artifact.
type ContentStore interface {
	ResolveContent(ctx context.Context, materialID string) (title, body string, err error)
	MergeIllustration(ctx context.Context, materialID string, artifact any, coverURL string) error
}

// Planner builds an illustration plan; it degrades instead of failing.
type Planner interface {
	Plan(ctx context.Context, title, body string) planner.IllustrationPlan
}

// ImageGenerator synthesizes one image per call.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, opts imagegen.Options) (string, error)
}

// Rehoster moves ephemeral image URLs into durable storage.
type Rehoster interface {
	Rehost(ctx context.Context, urls []string) rehost.Result
}

// Breaker gates generation calls while the image provider is cooling down.
type Breaker interface {
	IsOpen(ctx context.Context, provider string) bool
	Open(ctx context.Context, provider string)
	Close(ctx context.Context, provider string)
}

// Dependencies wires the pipeline components. Breaker and Checker are
// optional.
type Dependencies struct {
	Store   ContentStore
	Planner Planner
	Images  ImageGenerator
	Rehost  Rehoster
	Breaker Breaker
	Checker *statuscheck.Checker

	CoverWidth  int
	CoverHeight int
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.CoverWidth <= 0 {
		deps.CoverWidth = 900
	}
	if deps.CoverHeight <= 0 {
		deps.CoverHeight = 383
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", o.handleStatus)
	mux.HandleFunc("/api/illustrate", o.handleIllustrate)
	mux.HandleFunc("/api/rehost", o.handleRehost)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type illustrateReq struct {
	MaterialID string `json:"material_id"`
}

func (o *Orchestrator) handleIllustrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req illustrateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid json"})
		return
	}
	if req.MaterialID == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "missing material_id"})
		return
	}

	art, err := o.Illustrate(r.Context(), req.MaterialID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiResponse{Error: "no article content found for material"})
		return
	case err != nil:
		log.Error().Err(err).Str("material_id", req.MaterialID).Msg("illustration run failed")
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "illustration failed"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: art})
}

type rehostReq struct {
	URLs []string `json:"urls"`
}

type rehostData struct {
	Map     map[string]string `json:"map"`
	Failed  []string          `json:"failed"`
	Total   int               `json:"total"`
	Success int               `json:"success"`
}

// handleRehost exposes the rehoster as a standalone batch operation.
func (o *Orchestrator) handleRehost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req rehostReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid json"})
		return
	}
	if len(req.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "missing urls"})
		return
	}

	res := o.deps.Rehost.Rehost(r.Context(), req.URLs)
	failed := res.Failed
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: rehostData{
		Map:     res.Mapping,
		Failed:  failed,
		Total:   len(res.Mapping) + len(failed),
		Success: len(res.Mapping),
	}})
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if o.deps.Checker == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o.deps.Checker.Summary(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
