package matchdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/db"
	dbRedis "github.com/talentcloud/matchdex/internal/db/redis"
	dbValkey "github.com/talentcloud/matchdex/internal/db/valkey"
	"github.com/talentcloud/matchdex/internal/domain"
	"github.com/talentcloud/matchdex/internal/index"
	"github.com/talentcloud/matchdex/internal/repository/matchcache"
	profilerepo "github.com/talentcloud/matchdex/internal/repository/profile"
	"github.com/talentcloud/matchdex/internal/scoring"
	openaiEmb "github.com/talentcloud/matchdex/internal/transport/openai"
	matchuc "github.com/talentcloud/matchdex/internal/usecase/match"
	profileuc "github.com/talentcloud/matchdex/internal/usecase/profile"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultResultCacheTTL   = 5 * time.Minute
)

// Client is the matchdex SDK entry point.
type Client struct {
	store    db.Store
	profiles *profileuc.Service
	matcher  *matchuc.Service
}

// New creates a Client, connects to the database, and warms the in-process
// indexes from persisted vectors. The provided context bounds the initial
// readiness check and warm load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("matchdex: database address required (use WithValkey or WithRedis)")
	}
	if cfg.dimensions <= 0 {
		return nil, errors.New("matchdex: embedder required (use WithOpenAI or WithEmbedder)")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("matchdex: database not ready: %w", err)
	}

	client, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	if err := client.profiles.WarmLoad(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("matchdex: warm load: %w", err)
	}
	return client, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("matchdex: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("matchdex: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("matchdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	candidates := buildIndex(cfg)
	jobs := buildIndex(cfg)

	repo := profilerepo.New(store)
	cache := matchcache.New(store, defaultResultCacheTTL, nil, cfg.logger)

	profiles := profileuc.NewService(repo, embedder, candidates, jobs, cache, cfg.logger)

	var resultCache matchuc.ResultCache
	if cfg.cacheEnabled {
		resultCache = cache
	}
	matcher := matchuc.NewService(
		repo, embedder, candidates, jobs,
		scoring.NewEngine(scoring.DefaultPolicy()),
		resultCache, cfg.oversample, cfg.logger,
	)

	return &Client{store: store, profiles: profiles, matcher: matcher}, nil
}

func buildIndex(cfg *clientConfig) index.Index {
	if cfg.indexType == "ivf" {
		return index.NewIVF(cfg.dimensions, cfg.ivfLists, cfg.ivfProbes)
	}
	return index.NewFlat(cfg.dimensions)
}

// embedderAdapter lifts the public Embedder interface to the internal one.
type embedderAdapter struct {
	inner Embedder
}

func (a embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("custom embed: %w", err)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func buildEmbedder(cfg *clientConfig) (domain.Embedder, error) {
	var base domain.Embedder
	switch {
	case cfg.customEmb != nil:
		base = embedderAdapter{inner: cfg.customEmb}
	case cfg.model != "":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		})
	default:
		return nil, errors.New("matchdex: embedder required (use WithOpenAI or WithEmbedder)")
	}

	// Blank input short-circuits to the sentinel vector.
	return domain.NewSentinelEmbedder(base, cfg.dimensions), nil
}

// Close releases the database connection.
func (c *Client) Close() {
	c.store.Close()
}

// UpsertProfile embeds and stores one profile.
func (c *Client) UpsertProfile(ctx context.Context, p Profile) (UpsertResult, error) {
	res, err := c.profiles.Upsert(ctx, profileToDomain(p))
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ID: res.ID, Created: res.Created, LowConfidence: res.LowConfidence}, nil
}

// GetProfile returns one stored profile.
func (c *Client) GetProfile(ctx context.Context, id string) (Profile, error) {
	stored, err := c.profiles.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return profileFromDomain(stored.Record), nil
}

// RemoveProfile deletes a profile. Removing an unknown id is a no-op.
func (c *Client) RemoveProfile(ctx context.Context, id string) error {
	return c.profiles.Remove(ctx, id)
}

// MatchCandidates ranks candidates against a job posting.
func (c *Client) MatchCandidates(ctx context.Context, q MatchQuery) ([]MatchResult, error) {
	results, err := c.matcher.FindCandidates(ctx, toMatchQuery(q.JobID, q.Job, q))
	if err != nil {
		return nil, err
	}
	return fromDomainResults(results), nil
}

// MatchJobs ranks job postings against a candidate profile.
func (c *Client) MatchJobs(ctx context.Context, q MatchQuery) ([]MatchResult, error) {
	results, err := c.matcher.FindJobs(ctx, toMatchQuery(q.CandidateID, q.Candidate, q))
	if err != nil {
		return nil, err
	}
	return fromDomainResults(results), nil
}

// Reindex reloads every stored profile into the indexes and compacts them.
func (c *Client) Reindex(ctx context.Context) (int, error) {
	return c.profiles.Reindex(ctx)
}

// Stats returns corpus counts and index sizes.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	stats, err := c.profiles.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Candidates:         stats.Candidates,
		Jobs:               stats.Jobs,
		CandidateIndexSize: stats.CandidateIndexSize,
		JobIndexSize:       stats.JobIndexSize,
		Dimensions:         stats.Dimensions,
	}, nil
}

func toMatchQuery(id string, inline *Profile, q MatchQuery) matchuc.Query {
	query := matchuc.Query{
		ID:       id,
		TopK:     q.TopK,
		MinScore: q.MinScore,
	}
	if inline != nil {
		rec := profileToDomain(*inline)
		query.Inline = &rec
	}
	if q.Weights != nil {
		w := domain.ScoringWeights{
			Semantic:   q.Weights.Semantic,
			Skills:     q.Weights.Skills,
			Experience: q.Weights.Experience,
			Location:   q.Weights.Location,
		}
		query.Weights = &w
	}
	return query
}

func fromDomainResults(results []domain.MatchResult) []MatchResult {
	out := make([]MatchResult, len(results))
	for i, r := range results {
		out[i] = resultFromDomain(r)
	}
	return out
}
