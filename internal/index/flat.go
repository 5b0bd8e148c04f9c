package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/talentcloud/matchdex/internal/domain"
)

// Flat is the exact brute-force index: O(N*D) per query. It is the
// correctness oracle for the approximate implementations and the right
// choice for small corpora.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
}

var _ Index = (*Flat)(nil)

// NewFlat creates an exact index for dim-sized vectors.
func NewFlat(dim int) *Flat {
	return &Flat{
		dim:     dim,
		vectors: make(map[string][]float32),
	}
}

// Upsert inserts or atomically replaces the vector for id.
func (f *Flat) Upsert(id string, vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("upsert %q: got dim %d, want %d: %w", id, len(vec), f.dim, domain.ErrVectorDimMismatch)
	}

	own := make([]float32, len(vec))
	copy(own, vec)

	f.mu.Lock()
	f.vectors[id] = own
	f.mu.Unlock()
	return nil
}

// Remove deletes the vector for id. Unknown ids are a no-op: removal races
// with upsert are expected during re-embedding.
func (f *Flat) Remove(id string) {
	f.mu.Lock()
	delete(f.vectors, id)
	f.mu.Unlock()
}

// Query scans every stored vector.
func (f *Flat) Query(ctx context.Context, vec []float32, k int, minSim float64) ([]Hit, error) {
	if len(vec) != f.dim {
		return nil, fmt.Errorf("query: got dim %d, want %d: %w", len(vec), f.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	hits := make([]Hit, 0, len(f.vectors))
	n := 0
	for id, stored := range f.vectors {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("query canceled: %w", err)
			}
		}
		n++

		if len(stored) != f.dim {
			return nil, fmt.Errorf("entry %q has dim %d, want %d: %w", id, len(stored), f.dim, domain.ErrIndexCorrupt)
		}
		sim := clampSim(float64(domain.Dot(vec, stored)))
		if sim >= minSim {
			hits = append(hits, Hit{ID: id, Similarity: sim})
		}
	}

	return sortHits(hits, k), nil
}

// Rebuild is a no-op for the flat index; it has no derived structure.
func (f *Flat) Rebuild(_ context.Context) error {
	return nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dim returns the vector dimensionality.
func (f *Flat) Dim() int {
	return f.dim
}
