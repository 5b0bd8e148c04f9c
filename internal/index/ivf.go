package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/talentcloud/matchdex/internal/domain"
)

// IVF is an inverted-file index: vectors are partitioned into nlist
// clusters by spherical k-means, and a query scans only the nprobe lists
// whose centroids are closest, plus a mutable tail of entries inserted
// since the last Rebuild. The tail is scanned exactly, so fresh inserts
// are never subject to recall loss; only clustered entries are.
//
// Rebuild reclusters everything and empties the tail. It is also the
// recovery path after model-version migration or detected corruption.
type IVF struct {
	mu          sync.RWMutex
	dim         int
	nlist       int
	nprobe      int
	recallFloor float64

	centroids [][]float32
	lists     [][]ivfEntry
	listOf    map[string]int // id -> list holding its clustered vector
	tail      map[string][]float32

	measuredRecall float64
}

type ivfEntry struct {
	id  string
	vec []float32
}

var _ Index = (*IVF)(nil)

// kmeansIters bounds the clustering loop; assignments stabilize well
// before this on typical corpora.
const kmeansIters = 10

// Probe tuning after a rebuild samples this many stored vectors as queries
// and checks their top-tuneK neighbors against an exhaustive scan.
const (
	tuneSample = 256
	tuneK      = 10
)

// NewIVF creates a clustered index. nlist caps the cluster count (the
// effective count shrinks for small corpora); nprobe is how many clusters
// a query scans.
func NewIVF(dim, nlist, nprobe int) *IVF {
	if nlist < 1 {
		nlist = 1
	}
	if nprobe < 1 {
		nprobe = 1
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVF{
		dim:            dim,
		nlist:          nlist,
		nprobe:         nprobe,
		measuredRecall: 1,
		listOf:         make(map[string]int),
		tail:           make(map[string][]float32),
	}
}

// WithRecallFloor makes every Rebuild verify sampled recall@k against an
// exhaustive scan and widen nprobe until the floor holds (or probing goes
// exact). Zero disables tuning; nprobe stays as configured.
func (x *IVF) WithRecallFloor(floor float64) *IVF {
	if floor < 0 {
		floor = 0
	}
	if floor > 1 {
		floor = 1
	}
	x.recallFloor = floor
	return x
}

// Upsert inserts or atomically replaces the vector for id. The new vector
// lands in the tail; a stale clustered copy is removed under the same lock
// so no query ever sees both.
func (x *IVF) Upsert(id string, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("upsert %q: got dim %d, want %d: %w", id, len(vec), x.dim, domain.ErrVectorDimMismatch)
	}

	own := make([]float32, len(vec))
	copy(own, vec)

	x.mu.Lock()
	defer x.mu.Unlock()

	if li, ok := x.listOf[id]; ok {
		x.dropFromList(li, id)
		delete(x.listOf, id)
	}
	x.tail[id] = own
	return nil
}

// Remove deletes the vector for id. Unknown ids are a no-op.
func (x *IVF) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.tail[id]; ok {
		delete(x.tail, id)
		return
	}
	if li, ok := x.listOf[id]; ok {
		x.dropFromList(li, id)
		delete(x.listOf, id)
	}
}

// dropFromList removes id from lists[li]. Caller holds the write lock.
func (x *IVF) dropFromList(li int, id string) {
	list := x.lists[li]
	for i, e := range list {
		if e.id == id {
			list[i] = list[len(list)-1]
			x.lists[li] = list[:len(list)-1]
			return
		}
	}
}

// Query scans the nprobe closest lists and the whole tail.
func (x *IVF) Query(ctx context.Context, vec []float32, k int, minSim float64) ([]Hit, error) {
	if len(vec) != x.dim {
		return nil, fmt.Errorf("query: got dim %d, want %d: %w", len(vec), x.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []Hit
	n := 0
	scan := func(id string, stored []float32) error {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("query canceled: %w", err)
			}
		}
		n++

		if len(stored) != x.dim {
			return fmt.Errorf("entry %q has dim %d, want %d: %w", id, len(stored), x.dim, domain.ErrIndexCorrupt)
		}
		sim := clampSim(float64(domain.Dot(vec, stored)))
		if sim >= minSim {
			hits = append(hits, Hit{ID: id, Similarity: sim})
		}
		return nil
	}

	for _, li := range x.probeOrder(vec) {
		for _, e := range x.lists[li] {
			if err := scan(e.id, e.vec); err != nil {
				return nil, err
			}
		}
	}
	for id, stored := range x.tail {
		if err := scan(id, stored); err != nil {
			return nil, err
		}
	}

	if hits == nil {
		hits = []Hit{}
	}
	return sortHits(hits, k), nil
}

// probeOrder returns the indexes of the nprobe lists closest to vec.
func (x *IVF) probeOrder(vec []float32) []int {
	if len(x.centroids) == 0 {
		return nil
	}

	type cd struct {
		idx int
		sim float32
	}
	dists := make([]cd, len(x.centroids))
	for i, c := range x.centroids {
		dists[i] = cd{idx: i, sim: domain.Dot(vec, c)}
	}
	sort.Slice(dists, func(i, j int) bool {
		if dists[i].sim != dists[j].sim {
			return dists[i].sim > dists[j].sim
		}
		return dists[i].idx < dists[j].idx
	})

	probes := x.nprobe
	if probes > len(dists) {
		probes = len(dists)
	}
	order := make([]int, probes)
	for i := 0; i < probes; i++ {
		order[i] = dists[i].idx
	}
	return order
}

// Rebuild reclusters all entries and empties the tail, then re-tunes the
// probe width against the configured recall floor. Takes exclusive access
// for the duration; concurrent queries see the pre-rebuild state until it
// completes.
func (x *IVF) Rebuild(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	entries := make([]ivfEntry, 0, x.sizeLocked())
	for _, list := range x.lists {
		entries = append(entries, list...)
	}
	for id, vec := range x.tail {
		entries = append(entries, ivfEntry{id: id, vec: vec})
	}

	// Deterministic clustering: seed centroids from the id-sorted corpus.
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	nlist := x.nlist
	if nlist > len(entries) {
		nlist = len(entries)
	}
	if nlist == 0 {
		x.centroids = nil
		x.lists = nil
		x.listOf = make(map[string]int)
		x.tail = make(map[string][]float32)
		return nil
	}

	centroids := make([][]float32, nlist)
	for i := range centroids {
		seed := entries[i*len(entries)/nlist].vec
		c := make([]float32, x.dim)
		copy(c, seed)
		centroids[i] = c
	}

	assign := make([]int, len(entries))
	for iter := 0; iter < kmeansIters; iter++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rebuild canceled: %w", err)
		}

		changed := false
		for i, e := range entries {
			best, bestSim := 0, float32(-2)
			for ci, c := range centroids {
				if sim := domain.Dot(e.vec, c); sim > bestSim {
					best, bestSim = ci, sim
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids as normalized means; empty clusters keep
		// their previous centroid.
		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float64, x.dim)
		}
		for i, e := range entries {
			ci := assign[i]
			counts[ci]++
			for d, v := range e.vec {
				sums[ci][d] += float64(v)
			}
		}
		for ci := range centroids {
			if counts[ci] == 0 {
				continue
			}
			c := make([]float32, x.dim)
			for d := range c {
				c[d] = float32(sums[ci][d] / float64(counts[ci]))
			}
			centroids[ci] = domain.Normalize(c)
		}
	}

	lists := make([][]ivfEntry, nlist)
	listOf := make(map[string]int, len(entries))
	for i, e := range entries {
		ci := assign[i]
		lists[ci] = append(lists[ci], e)
		listOf[e.id] = ci
	}

	x.centroids = centroids
	x.lists = lists
	x.listOf = listOf
	x.tail = make(map[string][]float32)

	x.measuredRecall = 1
	if x.recallFloor > 0 && nlist > 1 {
		x.tuneProbesLocked(entries)
	}
	return nil
}

// tuneProbesLocked widens nprobe until sampled recall@tuneK meets the
// configured floor. The fallback is exact: at nprobe == list count every
// list is scanned and recall is 1. Caller holds the write lock and has just
// emptied the tail; entries is the id-sorted corpus.
func (x *IVF) tuneProbesLocked(entries []ivfEntry) {
	queries := entries
	if len(queries) > tuneSample {
		sampled := make([]ivfEntry, tuneSample)
		for i := range sampled {
			sampled[i] = queries[i*len(queries)/tuneSample]
		}
		queries = sampled
	}

	truth := make([][]Hit, len(queries))
	for i, q := range queries {
		truth[i] = topExact(entries, q.vec, tuneK)
	}

	for {
		x.measuredRecall = x.sampledRecallLocked(queries, truth)
		if x.measuredRecall >= x.recallFloor || x.nprobe >= len(x.lists) {
			return
		}
		x.nprobe *= 2
		if x.nprobe > len(x.lists) {
			x.nprobe = len(x.lists)
		}
	}
}

// sampledRecallLocked measures recall@tuneK of the current probe width
// against precomputed exact neighbors.
func (x *IVF) sampledRecallLocked(queries []ivfEntry, truth [][]Hit) float64 {
	var found, total int
	for i, q := range queries {
		var hits []Hit
		for _, li := range x.probeOrder(q.vec) {
			for _, e := range x.lists[li] {
				sim := clampSim(float64(domain.Dot(q.vec, e.vec)))
				hits = append(hits, Hit{ID: e.id, Similarity: sim})
			}
		}
		approx := make(map[string]struct{}, tuneK)
		for _, h := range sortHits(hits, tuneK) {
			approx[h.ID] = struct{}{}
		}
		for _, h := range truth[i] {
			total++
			if _, ok := approx[h.ID]; ok {
				found++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(found) / float64(total)
}

// topExact is the brute-force oracle over the given entries.
func topExact(entries []ivfEntry, vec []float32, k int) []Hit {
	hits := make([]Hit, len(entries))
	for i, e := range entries {
		hits[i] = Hit{ID: e.id, Similarity: clampSim(float64(domain.Dot(vec, e.vec)))}
	}
	return sortHits(hits, k)
}

// Len returns the number of indexed vectors.
func (x *IVF) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sizeLocked()
}

func (x *IVF) sizeLocked() int {
	n := len(x.tail)
	for _, list := range x.lists {
		n += len(list)
	}
	return n
}

// Dim returns the vector dimensionality.
func (x *IVF) Dim() int {
	return x.dim
}

// TailLen reports how many entries await clustering. Callers use it to
// decide when a Rebuild is worthwhile.
func (x *IVF) TailLen() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.tail)
}

// Probes returns the current probe width, including any widening done by
// recall tuning at the last Rebuild.
func (x *IVF) Probes() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nprobe
}

// MeasuredRecall returns the sampled recall@k from the last Rebuild. It is 1
// for an untuned or never-rebuilt index (the tail is scanned exactly).
func (x *IVF) MeasuredRecall() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.measuredRecall
}
