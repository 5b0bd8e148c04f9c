// Package index provides in-process vector indexes over unit-normalized
// embeddings. Flat is the exact brute-force oracle; IVF trades a bounded
// recall loss for sub-linear scan cost on large corpora. Both are safe for
// concurrent use: queries run in parallel, writers take exclusive access.
package index

import (
	"context"
	"sort"
)

// Hit is a single nearest-neighbor result.
type Hit struct {
	ID         string
	Similarity float64
}

// Index is the swappable approximate-nearest-neighbor capability.
//
// Query returns up to k hits with similarity >= minSim, ordered by
// descending similarity with ties broken by ascending id. Similarity is
// cosine similarity on unit vectors, clamped to [0,1]. Querying an empty
// index returns an empty slice.
//
// Upsert of an existing id is atomic: a concurrent Query observes either
// the old or the new vector, never a mix. Remove of an unknown id is a
// no-op. Rebuild compacts internal structure; normal operation never
// requires it.
type Index interface {
	Upsert(id string, vec []float32) error
	Remove(id string)
	Query(ctx context.Context, vec []float32, k int, minSim float64) ([]Hit, error)
	Rebuild(ctx context.Context) error
	Len() int
	Dim() int
}

// clampSim clamps raw cosine similarity to [0,1].
func clampSim(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// sortHits orders hits by descending similarity, ties by ascending id, and
// truncates to k. Deterministic for identical inputs.
func sortHits(hits []Hit, k int) []Hit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// checkEvery is how many distance computations a query performs between
// context cancellation checks.
const checkEvery = 1024
