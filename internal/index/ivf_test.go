package index

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentcloud/matchdex/internal/domain"
)

func TestIVF_TailQueriesAreExact(t *testing.T) {
	// Entries inserted since the last Rebuild live in the tail and are
	// scanned exhaustively, so results must match the flat oracle exactly.
	flat := NewFlat(4)
	ivf := NewIVF(4, 8, 1)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("p-%03d", i)
		vec := randomUnit(rng, 4)
		require.NoError(t, flat.Upsert(id, vec))
		require.NoError(t, ivf.Upsert(id, vec))
	}

	query := randomUnit(rng, 4)
	want, err := flat.Query(context.Background(), query, 10, 0)
	require.NoError(t, err)
	got, err := ivf.Query(context.Background(), query, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestIVF_FullProbeMatchesFlatOracle(t *testing.T) {
	// With nprobe == nlist every list is scanned, so the clustered index
	// degenerates to an exact one.
	flat := NewFlat(8)
	ivf := NewIVF(8, 4, 4)

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("p-%03d", i)
		vec := randomUnit(rng, 8)
		require.NoError(t, flat.Upsert(id, vec))
		require.NoError(t, ivf.Upsert(id, vec))
	}
	require.NoError(t, ivf.Rebuild(context.Background()))
	assert.Equal(t, 0, ivf.TailLen())

	for i := 0; i < 20; i++ {
		query := randomUnit(rng, 8)
		want, err := flat.Query(context.Background(), query, 10, 0)
		require.NoError(t, err)
		got, err := ivf.Query(context.Background(), query, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIVF_RebuildHoldsRecallFloor(t *testing.T) {
	// Tuning widens nprobe after clustering until sampled recall@10 meets
	// the floor, degenerating to an exact scan in the worst case. Measured
	// here over every stored vector against the flat oracle.
	flat := NewFlat(16)
	ivf := NewIVF(16, 16, 1).WithRecallFloor(0.95)

	rng := rand.New(rand.NewSource(3))
	vectors := make(map[string][]float32, 200)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("p-%03d", i)
		vec := randomUnit(rng, 16)
		vectors[id] = vec
		require.NoError(t, flat.Upsert(id, vec))
		require.NoError(t, ivf.Upsert(id, vec))
	}
	require.NoError(t, ivf.Rebuild(context.Background()))

	assert.GreaterOrEqual(t, ivf.MeasuredRecall(), 0.95)
	assert.Greater(t, ivf.Probes(), 1, "tuning never widened the probe width")

	found, total := 0, 0
	for _, vec := range vectors {
		want, err := flat.Query(context.Background(), vec, 10, 0)
		require.NoError(t, err)
		got, err := ivf.Query(context.Background(), vec, 10, 0)
		require.NoError(t, err)

		approx := make(map[string]struct{}, len(got))
		for _, h := range got {
			approx[h.ID] = struct{}{}
		}
		for _, h := range want {
			total++
			if _, ok := approx[h.ID]; ok {
				found++
			}
		}
	}
	recall := float64(found) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.95, "recall@10 = %.3f over %d queries", recall, len(vectors))
}

func TestIVF_NoRecallFloorKeepsConfiguredProbes(t *testing.T) {
	ivf := NewIVF(8, 8, 2)

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		require.NoError(t, ivf.Upsert(fmt.Sprintf("p-%03d", i), randomUnit(rng, 8)))
	}
	require.NoError(t, ivf.Rebuild(context.Background()))

	assert.Equal(t, 2, ivf.Probes())
	assert.Equal(t, 1.0, ivf.MeasuredRecall())
}

func TestIVF_RebuildIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	ids := make([]string, 100)
	vecs := make([][]float32, 100)
	for i := range ids {
		ids[i] = fmt.Sprintf("p-%03d", i)
		vecs[i] = randomUnit(rng, 8)
	}

	a := NewIVF(8, 8, 2)
	for i, id := range ids {
		require.NoError(t, a.Upsert(id, vecs[i]))
	}
	// Same corpus, reversed insertion order.
	b := NewIVF(8, 8, 2)
	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, b.Upsert(ids[i], vecs[i]))
	}

	require.NoError(t, a.Rebuild(context.Background()))
	require.NoError(t, b.Rebuild(context.Background()))

	for i := 0; i < 10; i++ {
		query := randomUnit(rng, 8)
		ra, err := a.Query(context.Background(), query, 10, 0)
		require.NoError(t, err)
		rb, err := b.Query(context.Background(), query, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}

func TestIVF_UpsertAfterRebuildSupersedesClusteredCopy(t *testing.T) {
	ivf := NewIVF(3, 2, 2)

	require.NoError(t, ivf.Upsert("a", unit(0, 1, 0)))
	require.NoError(t, ivf.Upsert("b", unit(0, 0, 1)))
	require.NoError(t, ivf.Rebuild(context.Background()))

	// Replacement lands in the tail; the clustered copy must be gone.
	require.NoError(t, ivf.Upsert("a", unit(1, 0, 0)))
	assert.Equal(t, 2, ivf.Len())
	assert.Equal(t, 1, ivf.TailLen())

	hits, err := ivf.Query(context.Background(), unit(1, 0, 0), 2, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestIVF_RemoveFromTailAndLists(t *testing.T) {
	ivf := NewIVF(3, 2, 2)

	require.NoError(t, ivf.Upsert("clustered", unit(0, 1, 0)))
	require.NoError(t, ivf.Rebuild(context.Background()))
	require.NoError(t, ivf.Upsert("fresh", unit(1, 0, 0)))

	ivf.Remove("missing")
	assert.Equal(t, 2, ivf.Len())

	ivf.Remove("fresh")
	assert.Equal(t, 1, ivf.Len())
	ivf.Remove("clustered")
	assert.Equal(t, 0, ivf.Len())

	hits, err := ivf.Query(context.Background(), unit(1, 0, 0), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIVF_RebuildEmptyIndex(t *testing.T) {
	ivf := NewIVF(3, 4, 2)
	require.NoError(t, ivf.Rebuild(context.Background()))
	assert.Equal(t, 0, ivf.Len())

	hits, err := ivf.Query(context.Background(), unit(1, 0, 0), 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestIVF_DimMismatch(t *testing.T) {
	ivf := NewIVF(3, 4, 2)

	err := ivf.Upsert("a", unit(1, 0))
	assert.ErrorIs(t, err, domain.ErrVectorDimMismatch)

	_, err = ivf.Query(context.Background(), unit(1, 0), 10, 0)
	assert.ErrorIs(t, err, domain.ErrVectorDimMismatch)
}

func TestIVF_ClampsListAndProbeCounts(t *testing.T) {
	ivf := NewIVF(3, 0, 9)
	assert.Equal(t, 1, ivf.nlist)
	assert.Equal(t, 1, ivf.nprobe)
}
