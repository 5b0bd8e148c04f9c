// Package matchcache is the query-result cache for match queries: a pure
// performance layer. Entries are keyed by a corpus generation counter so a
// single INCR invalidates every cached ranking after any profile change
// (conservative invalidate-all, no tracking of embedding neighborhoods).
package matchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/db"
	"github.com/talentcloud/matchdex/internal/domain"
)

var (
	resultKeyPrefix = domain.KeyPrefix + "match_cache:"
	generationKey   = domain.KeyPrefix + "match_cache:generation"
)

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Cache stores ranked match results with a short TTL.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a match-result cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

type cachedResult struct {
	CandidateID     string             `json:"candidate_id"`
	JobID           string             `json:"job_id"`
	OverallScore    float64            `json:"overall_score"`
	ComponentScores map[string]float64 `json:"component_scores"`
	MatchingSkills  []string           `json:"matching_skills"`
	MissingSkills   []string           `json:"missing_skills"`
	ExperienceGap   float64            `json:"experience_gap"`
	LowConfidence   bool               `json:"low_confidence,omitempty"`
}

// Get returns the cached ranking for the key, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.MatchResult, bool) {
	data, err := c.store.Get(ctx, resultKeyPrefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read match cache", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		return nil, false
	}

	var cached []cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("Failed to decode match cache entry", zap.String("key", key), zap.Error(err))
		c.incCache("miss")
		return nil, false
	}

	results := make([]domain.MatchResult, len(cached))
	for i, r := range cached {
		results[i] = domain.MatchResult{
			CandidateID:     r.CandidateID,
			JobID:           r.JobID,
			OverallScore:    r.OverallScore,
			ComponentScores: r.ComponentScores,
			MatchingSkills:  r.MatchingSkills,
			MissingSkills:   r.MissingSkills,
			ExperienceGap:   r.ExperienceGap,
			LowConfidence:   r.LowConfidence,
		}
	}
	c.incCache("hit")
	return results, true
}

// Put stores a ranking under the key. Failures are logged, never surfaced:
// the cache must not change results, only latency.
func (c *Cache) Put(ctx context.Context, key string, results []domain.MatchResult) {
	cached := make([]cachedResult, len(results))
	for i, r := range results {
		cached[i] = cachedResult{
			CandidateID:     r.CandidateID,
			JobID:           r.JobID,
			OverallScore:    r.OverallScore,
			ComponentScores: r.ComponentScores,
			MatchingSkills:  r.MatchingSkills,
			MissingSkills:   r.MissingSkills,
			ExperienceGap:   r.ExperienceGap,
			LowConfidence:   r.LowConfidence,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		c.logger.Warn("Failed to encode match cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, resultKeyPrefix+key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to write match cache", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the current corpus generation for cache keys. On store
// failure it returns the current time so the caller degrades to a miss
// instead of serving a stale ranking.
func (c *Cache) Generation(ctx context.Context) int64 {
	gen, err := c.store.IncrBy(ctx, generationKey, 0)
	if err != nil {
		c.logger.Warn("Failed to read cache generation", zap.Error(err))
		return time.Now().UnixNano()
	}
	return gen
}

// Bump invalidates all cached rankings by advancing the generation.
func (c *Cache) Bump(ctx context.Context) {
	if _, err := c.store.IncrBy(ctx, generationKey, 1); err != nil {
		c.logger.Warn("Failed to bump cache generation", zap.Error(err))
	}
}

// Key builds the cache key for one match query.
func Key(generation int64, jobID, weightsFingerprint string, topK int, minScore float64) string {
	return fmt.Sprintf("%d:%s:%s:%d:%.6f", generation, jobID, weightsFingerprint, topK, minScore)
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
