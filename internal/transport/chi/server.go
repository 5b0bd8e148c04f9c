// Package chi is the HTTP boundary: JSON in, ranked matches out. Handlers
// stay thin; every decision lives in the usecase layer.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/domain"
	healthuc "github.com/talentcloud/matchdex/internal/usecase/health"
	matchuc "github.com/talentcloud/matchdex/internal/usecase/match"
	profileuc "github.com/talentcloud/matchdex/internal/usecase/profile"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the matching API.
type Server struct {
	profiles      *profileuc.Service
	matcher       *matchuc.Service
	health        *healthuc.Service
	maxBatchSize  int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	profiles *profileuc.Service,
	matcher *matchuc.Service,
	health *healthuc.Service,
	maxBatchSize int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		profiles:     profiles,
		matcher:      matcher,
		health:       health,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrProfileNotFound, http.StatusNotFound, CodeProfileNotFound),
		sentinelHandler(domain.ErrInvalidWeights, http.StatusBadRequest, CodeInvalidWeights),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidProfile, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusBadGateway, CodeModelUnavailable),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrIndexCorrupt, http.StatusServiceUnavailable, CodeIndexCorrupt),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/profiles/{id}", s.UpsertProfile)
		r.Post("/profiles/batch", s.BatchUpsert)
		r.Get("/profiles/{id}", s.GetProfile)
		r.Delete("/profiles/{id}", s.DeleteProfile)
		r.Post("/match", s.Match)
		r.Post("/match/batch", s.BatchMatch)
		r.Get("/similarity/{candidate_id}/{job_id}", s.Similarity)
		r.Post("/reindex", s.Reindex)
		r.Get("/stats", s.Stats)
	})
}

// UpsertProfile handles PUT /api/v1/profiles/{id}.
func (s *Server) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "body id does not match path id")
		return
	}

	rec, err := req.toRecord(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	result, err := s.profiles.Upsert(r.Context(), rec)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/profiles/"+id)
	}
	writeJSON(w, status, UpsertResponse{
		ID:            result.ID,
		Created:       result.Created,
		LowConfidence: result.LowConfidence,
	})
}

// BatchUpsert handles POST /api/v1/profiles/batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req BatchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Profiles) == 0 || len(req.Profiles) > s.maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("profiles count must be between 1 and %d", s.maxBatchSize))
		return
	}

	recs := make([]domain.ProfileRecord, len(req.Profiles))
	for i, p := range req.Profiles {
		rec, err := p.toRecord("")
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("profile %d: %s", i, err.Error()))
			return
		}
		recs[i] = rec
	}

	results, itemErrs, err := s.profiles.BatchUpsert(r.Context(), recs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	succeeded, failed := 0, 0
	items := make([]BatchResultItem, len(recs))
	for i := range recs {
		if itemErrs[i] != nil {
			failed++
			items[i] = BatchResultItem{
				ID:     recs[i].ID,
				Status: "error",
				Error: &ErrorResponse{
					Code:    batchErrorCode(itemErrs[i]),
					Message: safeDomainMessage(itemErrs[i]),
				},
			}
			continue
		}
		succeeded++
		items[i] = BatchResultItem{
			ID:            results[i].ID,
			Status:        "ok",
			Created:       results[i].Created,
			LowConfidence: results[i].LowConfidence,
		}
	}

	writeJSON(w, http.StatusOK, BatchUpsertResponse{
		Items:     items,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// GetProfile handles GET /api/v1/profiles/{id}.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	stored, err := s.profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToDTO(stored.Record))
}

// DeleteProfile handles DELETE /api/v1/profiles/{id}.
func (s *Server) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Match handles POST /api/v1/match. The request names exactly one query
// side: a job (rank candidates) or a candidate (rank jobs).
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobSide := req.JobID != "" || req.Job != nil
	candidateSide := req.CandidateID != "" || req.Candidate != nil
	if jobSide == candidateSide {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"request must name exactly one query side: job or candidate")
		return
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "min_score must be in [0, 1]")
		return
	}

	q := matchuc.Query{
		TopK:     req.TopK,
		MinScore: req.MinScore,
	}
	if req.Weights != nil {
		weights := req.Weights.toDomain()
		q.Weights = &weights
	}

	var results []domain.MatchResult
	var err error
	if jobSide {
		q.ID = req.JobID
		if req.Job != nil {
			inline, convErr := req.Job.toRecord(req.Job.ID)
			if convErr != nil {
				writeError(w, http.StatusBadRequest, CodeValidationFailed, convErr.Error())
				return
			}
			q.Inline = &inline
		}
		results, err = s.matcher.FindCandidates(r.Context(), q)
	} else {
		q.ID = req.CandidateID
		if req.Candidate != nil {
			inline, convErr := req.Candidate.toRecord(req.Candidate.ID)
			if convErr != nil {
				writeError(w, http.StatusBadRequest, CodeValidationFailed, convErr.Error())
				return
			}
			q.Inline = &inline
		}
		results, err = s.matcher.FindJobs(r.Context(), q)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]MatchResultDTO, len(results))
	for i, res := range results {
		items[i] = matchResultToDTO(res)
	}
	writeJSON(w, http.StatusOK, MatchResponse{Results: items, Total: len(items)})
}

// Similarity handles GET /api/v1/similarity/{candidate_id}/{job_id}: one
// explained pair score without ranking.
func (s *Server) Similarity(w http.ResponseWriter, r *http.Request) {
	result, err := s.matcher.ScorePair(
		r.Context(),
		chi.URLParam(r, "candidate_id"),
		chi.URLParam(r, "job_id"),
		nil,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResultToDTO(result))
}

// BatchMatch handles POST /api/v1/match/batch: candidate rankings for
// several stored jobs, with per-job outcomes.
func (s *Server) BatchMatch(w http.ResponseWriter, r *http.Request) {
	var req BatchMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.JobIDs) == 0 || len(req.JobIDs) > s.maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("job_ids count must be between 1 and %d", s.maxBatchSize))
		return
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "min_score must be in [0, 1]")
		return
	}

	var weights *domain.ScoringWeights
	if req.Weights != nil {
		dw := req.Weights.toDomain()
		weights = &dw
	}

	batches, err := s.matcher.FindCandidatesBatch(r.Context(), req.JobIDs, req.TopK, req.MinScore, weights)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]BatchMatchItem, len(batches))
	for i, b := range batches {
		item := BatchMatchItem{JobID: b.JobID, Results: []MatchResultDTO{}}
		if b.Err != nil {
			item.Error = &ErrorResponse{
				Code:    batchErrorCode(b.Err),
				Message: safeDomainMessage(b.Err),
			}
		} else {
			item.Results = make([]MatchResultDTO, len(b.Results))
			for j, res := range b.Results {
				item.Results[j] = matchResultToDTO(res)
			}
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, BatchMatchResponse{Items: items, Jobs: len(items)})
}

// Reindex handles POST /api/v1/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := s.profiles.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Profiles: n})
}

// Stats handles GET /api/v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.profiles.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Candidates:         stats.Candidates,
		Jobs:               stats.Jobs,
		CandidateIndexSize: stats.CandidateIndexSize,
		JobIndexSize:       stats.JobIndexSize,
		Dimensions:         stats.Dimensions,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:     string(report.Status),
		Checks:     checks,
		Candidates: report.Candidates,
		Jobs:       report.Jobs,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrProfileNotFound,
		domain.ErrInvalidWeights,
		domain.ErrVectorDimMismatch,
		domain.ErrInvalidProfile,
		domain.ErrModelUnavailable,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrIndexCorrupt,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func batchErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return CodeProfileNotFound
	case errors.Is(err, domain.ErrInvalidProfile):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return CodeVectorDimMismatch
	case errors.Is(err, domain.ErrModelUnavailable):
		return CodeModelUnavailable
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return CodeEmbeddingQuotaExceeded
	default:
		return CodeInternalError
	}
}
