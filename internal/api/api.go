package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ner-gazetteer/internal/core"
	"ner-gazetteer/pkg/api"

	"github.com/go-chi/chi/v5"
)

const maxBatchSize = 1000

// AnnotationService serves a loaded pipeline over HTTP.
type AnnotationService struct {
	pipeline *core.Pipeline
	policy   core.MergePolicy
	workers  int
}

func NewAnnotationService(pipeline *core.Pipeline, policy core.MergePolicy, workers int) *AnnotationService {
	return &AnnotationService{pipeline: pipeline, policy: policy, workers: max(workers, 1)}
}

func (s *AnnotationService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Get("/labels", RestHandler(s.Labels))
	r.Route("/annotate", func(r chi.Router) {
		r.Post("/", RestHandler(s.Annotate))
		r.Get("/", RestHandler(s.AnnotateQuery))
		r.Post("/batch", RestHandler(s.AnnotateBatch))
	})
}

func (s *AnnotationService) Labels(r *http.Request) (any, error) {
	return api.LabelsResponse{Labels: s.pipeline.Labels()}, nil
}

func (s *AnnotationService) resolvePolicy(requested string) (core.MergePolicy, error) {
	if requested == "" {
		return s.policy, nil
	}
	policy, err := core.ParseMergePolicy(requested)
	if err != nil {
		return "", CodedError(http.StatusBadRequest, err)
	}
	return policy, nil
}

func (s *AnnotationService) process(text string, policy core.MergePolicy, queries map[string]core.Filter) (api.AnnotateResponse, error) {
	doc, err := s.pipeline.Process(text)
	if err != nil {
		slog.Error("error processing text", "error", err)
		return api.AnnotateResponse{}, CodedErrorf(http.StatusInternalServerError, "error processing text")
	}

	var groups []string
	if len(queries) > 0 {
		groups = core.MatchQueries(doc, queries, policy)
	}
	return convertDocument(doc, policy, groups), nil
}

func (s *AnnotationService) Annotate(r *http.Request) (any, error) {
	req, err := ParseRequest[api.AnnotateRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "text must not be empty")
	}

	policy, err := s.resolvePolicy(req.Policy)
	if err != nil {
		return nil, err
	}

	queries, err := core.ParseQueries(req.Queries)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	return s.process(req.Text, policy, queries)
}

func (s *AnnotationService) AnnotateQuery(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.AnnotateQueryParams](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Text) == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "text must not be empty")
	}

	policy, err := s.resolvePolicy(params.Policy)
	if err != nil {
		return nil, err
	}

	return s.process(params.Text, policy, nil)
}

func (s *AnnotationService) AnnotateBatch(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchAnnotateRequest](r)
	if err != nil {
		return nil, err
	}

	if len(req.Texts) == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "texts must not be empty")
	}
	if len(req.Texts) > maxBatchSize {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "at most %d texts can be annotated per request", maxBatchSize)
	}
	for i, text := range req.Texts {
		if strings.TrimSpace(text) == "" {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "text %d must not be empty", i)
		}
	}

	policy, err := s.resolvePolicy(req.Policy)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	docs, err := s.pipeline.ProcessBatch(req.Texts, s.workers)
	if err != nil {
		slog.Error("error processing batch", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error processing batch")
	}

	results := make([]api.AnnotateResponse, 0, len(docs))
	for _, doc := range docs {
		results = append(results, convertDocument(doc, policy, nil))
	}

	slog.Info("annotated batch", "texts", len(docs), "duration", time.Since(start))
	return api.BatchAnnotateResponse{Results: results}, nil
}
