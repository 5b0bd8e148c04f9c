// Package match is the ranking coordinator: it turns one query profile into a
// ranked, explainable list of matches from the opposite corpus side. The
// pipeline is index retrieval (oversampled), bulk record load, structured
// scoring, filter, deterministic sort, truncate.
package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/domain"
	"github.com/talentcloud/matchdex/internal/index"
	"github.com/talentcloud/matchdex/internal/metrics"
	"github.com/talentcloud/matchdex/internal/repository/matchcache"
	repo "github.com/talentcloud/matchdex/internal/repository/profile"
	"github.com/talentcloud/matchdex/internal/scoring"
)

const (
	// DefaultTopK is the result count when the query does not set one.
	DefaultTopK = 10
	// MaxTopK caps how many results one query may request.
	MaxTopK = 500
	// DefaultOversample is how many index hits are retrieved per requested
	// result. Structured scoring reorders hits, so the semantic top-k alone
	// would miss candidates whose overall score lifts them into the final k.
	DefaultOversample = 4
)

// Query describes one match request. Exactly one of ID and Inline must be
// set: ID names a stored profile, Inline carries an ad-hoc profile that is
// scored without being persisted.
type Query struct {
	ID       string
	Inline   *domain.ProfileRecord
	TopK     int
	MinScore float64
	Weights  *domain.ScoringWeights
}

// Service ranks matches across the two corpus sides.
type Service struct {
	store      Store
	embedder   domain.Embedder
	candidates index.Index
	jobs       index.Index
	scorer     *scoring.Engine
	cache      ResultCache
	oversample int
	logger     *zap.Logger
}

// NewService creates the ranking coordinator. cache may be nil to disable
// result caching; results are identical either way.
func NewService(
	store Store, embedder domain.Embedder,
	candidates, jobs index.Index,
	scorer *scoring.Engine, cache ResultCache,
	oversample int, logger *zap.Logger,
) *Service {
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	return &Service{
		store:      store,
		embedder:   embedder,
		candidates: candidates,
		jobs:       jobs,
		scorer:     scorer,
		cache:      cache,
		oversample: oversample,
		logger:     logger,
	}
}

// FindCandidates ranks candidate profiles against a job posting.
func (s *Service) FindCandidates(ctx context.Context, q Query) ([]domain.MatchResult, error) {
	return s.rank(ctx, q, domain.KindJob)
}

// FindJobs ranks job postings against a candidate profile.
func (s *Service) FindJobs(ctx context.Context, q Query) ([]domain.MatchResult, error) {
	return s.rank(ctx, q, domain.KindCandidate)
}

// ScorePair explains one stored candidate/job pairing: the same semantic and
// structured scoring as a ranked match, without retrieval.
func (s *Service) ScorePair(
	ctx context.Context, candidateID, jobID string, w *domain.ScoringWeights,
) (domain.MatchResult, error) {
	weights := domain.DefaultScoringWeights()
	if w != nil {
		weights = *w
	}
	if err := weights.Validate(); err != nil {
		return domain.MatchResult{}, err
	}

	cand, err := s.loadKind(ctx, candidateID, domain.KindCandidate)
	if err != nil {
		return domain.MatchResult{}, err
	}
	job, err := s.loadKind(ctx, jobID, domain.KindJob)
	if err != nil {
		return domain.MatchResult{}, err
	}
	if len(cand.Vector) != len(job.Vector) {
		return domain.MatchResult{}, fmt.Errorf(
			"pair %s/%s: vector dims %d vs %d: %w",
			candidateID, jobID, len(cand.Vector), len(job.Vector), domain.ErrVectorDimMismatch,
		)
	}

	sim := domain.CosineSimilarity(cand.Vector, job.Vector)
	result, err := s.scorer.Score(cand.Record, job.Record, sim, weights)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("score pair %s/%s: %w", candidateID, jobID, err)
	}
	result.LowConfidence = cand.LowConfidence || job.LowConfidence ||
		domain.IsZero(cand.Vector) || domain.IsZero(job.Vector)
	return result, nil
}

// BatchMatch is the per-job outcome of a batch candidate ranking.
type BatchMatch struct {
	JobID   string
	Results []domain.MatchResult
	Err     error
}

// FindCandidatesBatch ranks candidates for several stored jobs in one call.
// A per-job failure (an unknown id) lands in its item, not the call error,
// so one bad id never sinks the batch.
func (s *Service) FindCandidatesBatch(
	ctx context.Context, jobIDs []string,
	topK int, minScore float64, w *domain.ScoringWeights,
) ([]BatchMatch, error) {
	weights := domain.DefaultScoringWeights()
	if w != nil {
		weights = *w
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	out := make([]BatchMatch, len(jobIDs))
	for i, id := range jobIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch match canceled: %w", err)
		}
		results, err := s.FindCandidates(ctx, Query{
			ID: id, TopK: topK, MinScore: minScore, Weights: w,
		})
		out[i] = BatchMatch{JobID: id, Results: results, Err: err}
	}
	return out, nil
}

// loadKind fetches a stored profile and checks its corpus side.
func (s *Service) loadKind(ctx context.Context, id string, kind domain.Kind) (repo.Stored, error) {
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return repo.Stored{}, err
	}
	if stored.Record.Kind != kind {
		return repo.Stored{}, fmt.Errorf(
			"profile %s is a %s, not a %s: %w",
			id, stored.Record.Kind, kind, domain.ErrInvalidProfile,
		)
	}
	return stored, nil
}

// rank runs the full pipeline for a query of kind queryKind against the
// opposite side's index.
func (s *Service) rank(ctx context.Context, q Query, queryKind domain.Kind) ([]domain.MatchResult, error) {
	start := time.Now()

	results, err := s.doRank(ctx, q, queryKind)

	metrics.MatchRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MatchRequestsTotal.WithLabelValues("success").Inc()
	return results, nil
}

func (s *Service) doRank(ctx context.Context, q Query, queryKind domain.Kind) ([]domain.MatchResult, error) {
	weights := domain.DefaultScoringWeights()
	if q.Weights != nil {
		weights = *q.Weights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryRec, queryVec, queryLowConf, err := s.resolveQuery(ctx, q, queryKind)
	if err != nil {
		return nil, err
	}

	cacheKey, cacheable := s.cacheKey(ctx, q, queryKind, weights, topK)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	hits, err := s.targetIndex(queryKind).Query(ctx, queryVec, topK*s.oversample, 0)
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}
	if len(hits) == 0 {
		return []domain.MatchResult{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	stored, err := s.store.GetMulti(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load matched profiles: %w", err)
	}

	results := make([]domain.MatchResult, 0, len(hits))
	for _, hit := range hits {
		target, ok := stored[hit.ID]
		if !ok {
			// Deleted between index query and record load.
			continue
		}

		result, err := s.score(queryRec, target, hit.Similarity, weights, queryKind)
		if err != nil {
			return nil, err
		}
		result.LowConfidence = queryLowConf || target.LowConfidence || domain.IsZero(target.Vector)

		if result.OverallScore < q.MinScore {
			continue
		}
		results = append(results, result)
	}

	metrics.MatchCandidatesScored.Observe(float64(len(results)))

	sortResults(results, queryKind)
	if len(results) > topK {
		results = results[:topK]
	}

	if cacheable {
		s.cache.Put(ctx, cacheKey, results)
	}

	s.logger.Debug("Match query completed",
		zap.String("query_kind", string(queryKind)),
		zap.Int("index_hits", len(hits)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// resolveQuery loads the query profile's record and vector: from the store
// for an ID query, from a fresh embedding for an inline one.
func (s *Service) resolveQuery(
	ctx context.Context, q Query, queryKind domain.Kind,
) (domain.ProfileRecord, []float32, bool, error) {
	if q.ID != "" {
		stored, err := s.loadKind(ctx, q.ID, queryKind)
		if err != nil {
			return domain.ProfileRecord{}, nil, false, err
		}
		return stored.Record, stored.Vector, stored.LowConfidence, nil
	}

	if q.Inline == nil {
		return domain.ProfileRecord{}, nil, false, fmt.Errorf(
			"query needs an id or an inline profile: %w", domain.ErrInvalidProfile)
	}

	rec := *q.Inline
	rec.Kind = queryKind
	res, err := s.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return domain.ProfileRecord{}, nil, false, fmt.Errorf("embed query: %w", err)
	}
	return rec, domain.Normalize(res.Embedding), res.LowConfidence, nil
}

// score orients the scorer's (candidate, job) arguments by query kind.
func (s *Service) score(
	query domain.ProfileRecord, target repo.Stored,
	similarity float64, weights domain.ScoringWeights, queryKind domain.Kind,
) (domain.MatchResult, error) {
	var result domain.MatchResult
	var err error
	if queryKind == domain.KindJob {
		result, err = s.scorer.Score(target.Record, query, similarity, weights)
	} else {
		result, err = s.scorer.Score(query, target.Record, similarity, weights)
	}
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("score %s: %w", target.Record.ID, err)
	}
	return result, nil
}

// cacheKey builds the key for a stored-ID query. Inline queries are not
// cached: their content has no stable identity.
func (s *Service) cacheKey(
	ctx context.Context, q Query, queryKind domain.Kind,
	weights domain.ScoringWeights, topK int,
) (string, bool) {
	if s.cache == nil || q.ID == "" {
		return "", false
	}
	gen := s.cache.Generation(ctx)
	id := string(queryKind) + ":" + q.ID
	return matchcache.Key(gen, id, weights.Fingerprint(), topK, q.MinScore), true
}

func (s *Service) targetIndex(queryKind domain.Kind) index.Index {
	if queryKind == domain.KindJob {
		return s.candidates
	}
	return s.jobs
}

// sortResults orders by descending overall score; ties break on the ascending
// id of the ranked side so equal-score orderings are stable across runs.
func sortResults(results []domain.MatchResult, queryKind domain.Kind) {
	rankedID := func(r domain.MatchResult) string {
		if queryKind == domain.KindJob {
			return r.CandidateID
		}
		return r.JobID
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].OverallScore != results[j].OverallScore {
			return results[i].OverallScore > results[j].OverallScore
		}
		return rankedID(results[i]) < rankedID(results[j])
	})
}
