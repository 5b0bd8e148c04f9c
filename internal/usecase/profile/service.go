// Package profile implements the profile lifecycle: ingest, embed, persist,
// index, remove. Every mutation bumps the match cache generation so rankings
// never survive a corpus change.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/domain"
	"github.com/talentcloud/matchdex/internal/index"
	"github.com/talentcloud/matchdex/internal/metrics"
	repo "github.com/talentcloud/matchdex/internal/repository/profile"
)

// Service owns the profile lifecycle for both corpus sides.
type Service struct {
	store      Store
	embedder   domain.Embedder
	candidates index.Index
	jobs       index.Index
	cache      Invalidator
	logger     *zap.Logger
}

// NewService creates the profile service.
func NewService(
	store Store, embedder domain.Embedder,
	candidates, jobs index.Index,
	cache Invalidator, logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		embedder:   embedder,
		candidates: candidates,
		jobs:       jobs,
		cache:      cache,
		logger:     logger,
	}
}

// UpsertResult reports the outcome of a single profile upsert.
type UpsertResult struct {
	ID            string
	Created       bool
	LowConfidence bool
}

// Upsert embeds the profile text, persists the record with its vector, and
// places the vector in the kind's index. Upserting an existing id replaces
// the previous record atomically from the reader's point of view.
func (s *Service) Upsert(ctx context.Context, rec domain.ProfileRecord) (UpsertResult, error) {
	if err := validate(rec); err != nil {
		return UpsertResult{}, err
	}
	normalize(&rec)

	res, err := s.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("embed profile %s: %w", rec.ID, err)
	}
	vec := domain.Normalize(res.Embedding)

	created, err := s.index(ctx, rec, vec, res.LowConfidence)
	if err != nil {
		return UpsertResult{}, err
	}

	s.cache.Bump(ctx)
	s.observeSizes()

	s.logger.Info("Profile upserted",
		zap.String("id", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.Bool("created", created),
		zap.Bool("low_confidence", res.LowConfidence),
	)

	return UpsertResult{ID: rec.ID, Created: created, LowConfidence: res.LowConfidence}, nil
}

// BatchUpsert embeds and stores multiple profiles in one pass, vectorizing
// them with a single batched encoder call. Results are per-item: one invalid
// profile does not fail the rest of the batch.
func (s *Service) BatchUpsert(ctx context.Context, recs []domain.ProfileRecord) ([]UpsertResult, []error, error) {
	if len(recs) == 0 {
		return nil, nil, nil
	}

	results := make([]UpsertResult, len(recs))
	itemErrs := make([]error, len(recs))

	// Validate up front so only valid texts reach the encoder.
	var validIdx []int
	var texts []string
	for i := range recs {
		if err := validate(recs[i]); err != nil {
			itemErrs[i] = err
			continue
		}
		normalize(&recs[i])
		validIdx = append(validIdx, i)
		texts = append(texts, recs[i].Text)
	}
	if len(validIdx) == 0 {
		return results, itemErrs, nil
	}

	batch, err := s.batchEmbed(ctx, texts)
	if err != nil {
		// Encoder failure is batch-fatal: no item was stored.
		return nil, nil, fmt.Errorf("batch embed: %w", err)
	}

	for j, i := range validIdx {
		rec := recs[i]
		vec := domain.Normalize(batch.Embeddings[j])
		lowConfidence := domain.IsZero(vec)

		created, err := s.index(ctx, rec, vec, lowConfidence)
		if err != nil {
			itemErrs[i] = err
			continue
		}
		results[i] = UpsertResult{ID: rec.ID, Created: created, LowConfidence: lowConfidence}
	}

	s.cache.Bump(ctx)
	s.observeSizes()

	s.logger.Info("Profile batch upserted",
		zap.Int("total", len(recs)),
		zap.Int("embedded", len(validIdx)),
	)

	return results, itemErrs, nil
}

// Get returns one stored profile.
func (s *Service) Get(ctx context.Context, id string) (repo.Stored, error) {
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return repo.Stored{}, err
	}
	return stored, nil
}

// Remove deletes a profile from the store and its index. Removing an unknown
// id is a no-op and does not invalidate the cache.
func (s *Service) Remove(ctx context.Context, id string) error {
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.indexFor(stored.Record.Kind).Remove(id)

	s.cache.Bump(ctx)
	s.observeSizes()

	s.logger.Info("Profile removed",
		zap.String("id", id),
		zap.String("kind", string(stored.Record.Kind)),
	)
	return nil
}

// WarmLoad fills both indexes from the store. Called once at startup so a
// restart recovers the in-process indexes from persisted vectors.
func (s *Service) WarmLoad(ctx context.Context) error {
	var loaded int
	err := s.store.All(ctx, func(st repo.Stored) error {
		if err := s.indexFor(st.Record.Kind).Upsert(st.Record.ID, st.Vector); err != nil {
			return fmt.Errorf("index %s: %w", st.Record.ID, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("warm load: %w", err)
	}

	s.observeSizes()
	s.logger.Info("Indexes warmed from store", zap.Int("profiles", loaded))
	return nil
}

// Reindex re-reads every stored profile into the indexes and compacts them.
// Rankings after a reindex are identical to before, modulo index recall.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	var loaded int
	err := s.store.All(ctx, func(st repo.Stored) error {
		if err := s.indexFor(st.Record.Kind).Upsert(st.Record.ID, st.Vector); err != nil {
			return fmt.Errorf("index %s: %w", st.Record.ID, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reindex load: %w", err)
	}

	if err := s.candidates.Rebuild(ctx); err != nil {
		return 0, fmt.Errorf("rebuild candidate index: %w", err)
	}
	if err := s.jobs.Rebuild(ctx); err != nil {
		return 0, fmt.Errorf("rebuild job index: %w", err)
	}

	s.cache.Bump(ctx)
	s.observeSizes()

	s.logger.Info("Reindex complete", zap.Int("profiles", loaded))
	return loaded, nil
}

// Stats is a point-in-time snapshot of corpus and index state.
type Stats struct {
	Candidates         int
	Jobs               int
	CandidateIndexSize int
	JobIndexSize       int
	Dimensions         int
}

// Stats returns corpus counts from the store and live index sizes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	candidates, jobs, err := s.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count profiles: %w", err)
	}
	return Stats{
		Candidates:         candidates,
		Jobs:               jobs,
		CandidateIndexSize: s.candidates.Len(),
		JobIndexSize:       s.jobs.Len(),
		Dimensions:         s.candidates.Dim(),
	}, nil
}

func (s *Service) index(ctx context.Context, rec domain.ProfileRecord, vec []float32, lowConfidence bool) (bool, error) {
	created, err := s.store.Upsert(ctx, rec, vec, lowConfidence)
	if err != nil {
		return false, fmt.Errorf("store profile %s: %w", rec.ID, err)
	}
	if err := s.indexFor(rec.Kind).Upsert(rec.ID, vec); err != nil {
		return false, fmt.Errorf("index profile %s: %w", rec.ID, err)
	}
	return created, nil
}

func (s *Service) indexFor(kind domain.Kind) index.Index {
	if kind == domain.KindJob {
		return s.jobs
	}
	return s.candidates
}

func (s *Service) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embedder, texts)
}

func (s *Service) observeSizes() {
	metrics.IndexSize.WithLabelValues(string(domain.KindCandidate)).Set(float64(s.candidates.Len()))
	metrics.IndexSize.WithLabelValues(string(domain.KindJob)).Set(float64(s.jobs.Len()))
}

// validate rejects records the engine cannot match on.
func validate(rec domain.ProfileRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("empty profile id: %w", domain.ErrInvalidProfile)
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("profile %s: unknown kind %q: %w", rec.ID, rec.Kind, domain.ErrInvalidProfile)
	}
	return nil
}

// normalize lowercases and trims the fields that component scoring compares
// verbatim, so boundary-layer casing never affects a score.
func normalize(rec *domain.ProfileRecord) {
	for i, skill := range rec.Skills {
		rec.Skills[i] = strings.ToLower(strings.TrimSpace(skill))
	}
	rec.Location = strings.ToLower(strings.TrimSpace(rec.Location))
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrProfileNotFound)
}
