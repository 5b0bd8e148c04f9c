package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/domain"
	"github.com/talentcloud/matchdex/internal/index"
	repo "github.com/talentcloud/matchdex/internal/repository/profile"
)

// --- Mocks ---

type mockStore struct {
	data      map[string]repo.Stored
	upsertErr error
	getErr    error
	deleteErr error
	allErr    error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]repo.Stored)}
}

func (m *mockStore) Upsert(_ context.Context, rec domain.ProfileRecord, vec []float32, lowConfidence bool) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	_, existed := m.data[rec.ID]
	m.data[rec.ID] = repo.Stored{Record: rec, Vector: vec, LowConfidence: lowConfidence}
	return !existed, nil
}

func (m *mockStore) Get(_ context.Context, id string) (repo.Stored, error) {
	if m.getErr != nil {
		return repo.Stored{}, m.getErr
	}
	stored, ok := m.data[id]
	if !ok {
		return repo.Stored{}, fmt.Errorf("profile %s: %w", id, domain.ErrProfileNotFound)
	}
	return stored, nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, id)
	return nil
}

func (m *mockStore) All(_ context.Context, fn func(repo.Stored) error) error {
	if m.allErr != nil {
		return m.allErr
	}
	for _, stored := range m.data {
		if err := fn(stored); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) Count(_ context.Context) (int, int, error) {
	var candidates, jobs int
	for _, stored := range m.data {
		if stored.Record.Kind == domain.KindCandidate {
			candidates++
		} else {
			jobs++
		}
	}
	return candidates, jobs, nil
}

type mockInvalidator struct {
	bumps int
}

func (m *mockInvalidator) Bump(_ context.Context) { m.bumps++ }

// mockEmbedder returns a fixed unit vector, or the zero sentinel for blank
// text. Batch calls are counted to assert single-call batching.
type mockEmbedder struct {
	err        error
	batchErr   error
	calls      int
	batchCalls int
}

func (m *mockEmbedder) vecFor(text string) domain.EmbeddingResult {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{Embedding: domain.ZeroVector(3), LowConfidence: true}
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 5}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.vecFor(text), nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vecFor(text).Embedding
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type fixture struct {
	svc        *Service
	store      *mockStore
	embedder   *mockEmbedder
	candidates index.Index
	jobs       index.Index
	cache      *mockInvalidator
}

func newFixture() *fixture {
	f := &fixture{
		store:      newMockStore(),
		embedder:   &mockEmbedder{},
		candidates: index.NewFlat(3),
		jobs:       index.NewFlat(3),
		cache:      &mockInvalidator{},
	}
	f.svc = NewService(f.store, f.embedder, f.candidates, f.jobs, f.cache, zap.NewNop())
	return f
}

func candidateRec(id string) domain.ProfileRecord {
	return domain.ProfileRecord{
		ID:       id,
		Kind:     domain.KindCandidate,
		Text:     "backend engineer",
		Skills:   []string{"go"},
		Location: "berlin",
	}
}

// --- Tests ---

func TestUpsert_StoresEmbedsAndIndexes(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Upsert(context.Background(), candidateRec("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("expected Created=true for a new profile")
	}
	if res.LowConfidence {
		t.Error("unexpected low-confidence flag")
	}
	if _, ok := f.store.data["c1"]; !ok {
		t.Fatal("profile not persisted")
	}
	if f.candidates.Len() != 1 {
		t.Errorf("candidate index size = %d, want 1", f.candidates.Len())
	}
	if f.jobs.Len() != 0 {
		t.Errorf("job index size = %d, want 0", f.jobs.Len())
	}
	if f.cache.bumps != 1 {
		t.Errorf("cache bumps = %d, want 1", f.cache.bumps)
	}
}

func TestUpsert_SecondWriteReplaces(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Upsert(context.Background(), candidateRec("c1")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	res, err := f.svc.Upsert(context.Background(), candidateRec("c1"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res.Created {
		t.Error("expected Created=false for an existing profile")
	}
	if f.candidates.Len() != 1 {
		t.Errorf("candidate index size = %d, want 1", f.candidates.Len())
	}
}

func TestUpsert_NormalizesSkillsAndLocation(t *testing.T) {
	f := newFixture()

	rec := candidateRec("c1")
	rec.Skills = []string{"  Go ", "REDIS"}
	rec.Location = " Berlin "

	if _, err := f.svc.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.store.data["c1"]
	if stored.Record.Skills[0] != "go" || stored.Record.Skills[1] != "redis" {
		t.Errorf("skills not normalized: %v", stored.Record.Skills)
	}
	if stored.Record.Location != "berlin" {
		t.Errorf("location not normalized: %q", stored.Record.Location)
	}
}

func TestUpsert_BlankTextIsLowConfidence(t *testing.T) {
	f := newFixture()

	rec := candidateRec("c1")
	rec.Text = "   "

	res, err := f.svc.Upsert(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.LowConfidence {
		t.Error("expected low-confidence result for blank text")
	}
	if !f.store.data["c1"].LowConfidence {
		t.Error("low-confidence flag not persisted")
	}
}

func TestUpsert_RejectsInvalidRecords(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		rec  domain.ProfileRecord
	}{
		{"empty id", domain.ProfileRecord{Kind: domain.KindCandidate, Text: "x"}},
		{"whitespace id", domain.ProfileRecord{ID: "  ", Kind: domain.KindCandidate, Text: "x"}},
		{"unknown kind", domain.ProfileRecord{ID: "c1", Kind: "recruiter", Text: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upsert(context.Background(), tc.rec)
			if !errors.Is(err, domain.ErrInvalidProfile) {
				t.Fatalf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
	if len(f.store.data) != 0 {
		t.Error("invalid profile reached the store")
	}
	if f.cache.bumps != 0 {
		t.Error("cache bumped for rejected upsert")
	}
}

func TestUpsert_EmbedErrorStoresNothing(t *testing.T) {
	f := newFixture()
	f.embedder.err = errors.New("provider down")

	if _, err := f.svc.Upsert(context.Background(), candidateRec("c1")); err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.data) != 0 {
		t.Error("profile stored despite embed failure")
	}
	if f.candidates.Len() != 0 {
		t.Error("profile indexed despite embed failure")
	}
}

func TestBatchUpsert_MixedValidity(t *testing.T) {
	f := newFixture()

	recs := []domain.ProfileRecord{
		candidateRec("c1"),
		{Kind: domain.KindCandidate, Text: "no id"},
		{ID: "j1", Kind: domain.KindJob, Text: "backend role"},
	}

	results, itemErrs, err := f.svc.BatchUpsert(context.Background(), recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(itemErrs[1], domain.ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile for item 1, got %v", itemErrs[1])
	}
	if itemErrs[0] != nil || itemErrs[2] != nil {
		t.Errorf("unexpected item errors: %v", itemErrs)
	}
	if results[0].ID != "c1" || results[2].ID != "j1" {
		t.Errorf("unexpected results: %+v", results)
	}
	if f.embedder.batchCalls != 1 {
		t.Errorf("batch encoder calls = %d, want 1", f.embedder.batchCalls)
	}
	if f.candidates.Len() != 1 || f.jobs.Len() != 1 {
		t.Errorf("index sizes = %d/%d, want 1/1", f.candidates.Len(), f.jobs.Len())
	}
	if f.cache.bumps != 1 {
		t.Errorf("cache bumps = %d, want 1", f.cache.bumps)
	}
}

func TestBatchUpsert_EncoderFailureIsBatchFatal(t *testing.T) {
	f := newFixture()
	f.embedder.batchErr = errors.New("provider down")

	_, _, err := f.svc.BatchUpsert(context.Background(), []domain.ProfileRecord{candidateRec("c1")})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.data) != 0 {
		t.Error("items stored despite encoder failure")
	}
}

func TestBatchUpsert_Empty(t *testing.T) {
	f := newFixture()

	results, itemErrs, err := f.svc.BatchUpsert(context.Background(), nil)
	if err != nil || results != nil || itemErrs != nil {
		t.Fatalf("expected all-nil for empty batch, got %v %v %v", results, itemErrs, err)
	}
	if f.embedder.batchCalls != 0 {
		t.Error("encoder called for empty batch")
	}
}

func TestRemove_DeletesAndBumps(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Upsert(context.Background(), candidateRec("c1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	f.cache.bumps = 0

	if err := f.svc.Remove(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.data) != 0 {
		t.Error("profile still in store")
	}
	if f.candidates.Len() != 0 {
		t.Error("profile still indexed")
	}
	if f.cache.bumps != 1 {
		t.Errorf("cache bumps = %d, want 1", f.cache.bumps)
	}
}

func TestRemove_UnknownIsNoopWithoutBump(t *testing.T) {
	f := newFixture()

	if err := f.svc.Remove(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.cache.bumps != 0 {
		t.Error("cache bumped for a no-op removal")
	}
}

func TestWarmLoad_FillsBothIndexes(t *testing.T) {
	f := newFixture()
	f.store.data["c1"] = repo.Stored{Record: candidateRec("c1"), Vector: []float32{1, 0, 0}}
	f.store.data["j1"] = repo.Stored{
		Record: domain.ProfileRecord{ID: "j1", Kind: domain.KindJob, Text: "role"},
		Vector: []float32{0, 1, 0},
	}

	if err := f.svc.WarmLoad(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.candidates.Len() != 1 || f.jobs.Len() != 1 {
		t.Errorf("index sizes = %d/%d, want 1/1", f.candidates.Len(), f.jobs.Len())
	}
	if f.embedder.calls != 0 || f.embedder.batchCalls != 0 {
		t.Error("warm load must not call the encoder")
	}
}

func TestReindex_ReturnsCountAndBumps(t *testing.T) {
	f := newFixture()
	f.store.data["c1"] = repo.Stored{Record: candidateRec("c1"), Vector: []float32{1, 0, 0}}
	f.store.data["c2"] = repo.Stored{Record: candidateRec("c2"), Vector: []float32{0, 1, 0}}

	n, err := f.svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("reindexed = %d, want 2", n)
	}
	if f.cache.bumps != 1 {
		t.Errorf("cache bumps = %d, want 1", f.cache.bumps)
	}
}

func TestStats_ReportsCountsAndSizes(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Upsert(context.Background(), candidateRec("c1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Candidates != 1 || stats.Jobs != 0 {
		t.Errorf("counts = %d/%d, want 1/0", stats.Candidates, stats.Jobs)
	}
	if stats.CandidateIndexSize != 1 || stats.JobIndexSize != 0 {
		t.Errorf("index sizes = %d/%d, want 1/0", stats.CandidateIndexSize, stats.JobIndexSize)
	}
	if stats.Dimensions != 3 {
		t.Errorf("dimensions = %d, want 3", stats.Dimensions)
	}
}
