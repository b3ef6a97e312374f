package testutil

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/spatial"
)

// SearchResult represents a search result.
type SearchResult struct {
	ID       uint64
	Distance float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Shuffle pseudo-randomizes the order of n elements.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(n, swap)
}

// UniformPoints generates random points with coordinates in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformPoints(num, dim int) []spatial.Point {
	return r.UniformRangePoints(num, dim, 0, 1)
}

// UniformRangePoints generates random points with coordinates in range
// [minVal, maxVal).
func (r *RNG) UniformRangePoints(num, dim int, minVal, maxVal float64) []spatial.Point {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	points := make([]spatial.Point, num)
	span := maxVal - minVal
	for i := range num {
		p := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range p {
			p[j] = minVal + r.rand.Float64()*span
		}
		points[i] = p
	}
	return points
}

// ClusteredPoints generates points around random centers in [0, 1)^dim with
// Gaussian noise of the given spread. Clustered data is what provokes high
// directory overlap.
func (r *RNG) ClusteredPoints(num, dim, clusters int, spread float64) []spatial.Point {
	centers := r.UniformPoints(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	points := make([]spatial.Point, num)
	for i := range num {
		c := centers[i%clusters]
		p := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range p {
			p[j] = c[j] + r.rand.NormFloat64()*spread
		}
		points[i] = p
	}
	return points
}

// GridPoints returns the points of a side^dim integer grid in row-major
// order. Grids produce many equal distances and degenerate boxes.
func GridPoints(side, dim int) []spatial.Point {
	total := 1
	for range dim {
		total *= side
	}
	points := make([]spatial.Point, total)
	for i := range total {
		p := make(spatial.Point, dim)
		v := i
		for j := dim - 1; j >= 0; j-- {
			p[j] = float64(v % side)
			v /= side
		}
		points[i] = p
	}
	return points
}

// ExactKNN computes the k nearest points to q by brute force. The object id
// of points[i] is i. Ties are ordered by id.
func ExactKNN(q spatial.Point, points []spatial.Point, k int, d distance.Func) []SearchResult {
	all := make([]SearchResult, len(points))
	for i, p := range points {
		all[i] = SearchResult{ID: uint64(i), Distance: d.Distance(q, p)}
	}
	sortResults(all)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// ExactRange returns every point within radius of q by brute force.
func ExactRange(q spatial.Point, points []spatial.Point, radius float64, d distance.Func) []SearchResult {
	var out []SearchResult
	for i, p := range points {
		if dist := d.Distance(q, p); dist <= radius {
			out = append(out, SearchResult{ID: uint64(i), Distance: dist})
		}
	}
	sortResults(out)
	return out
}

func sortResults(rs []SearchResult) {
	slices.SortFunc(rs, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})
}

// Distances extracts the distance column of results.
func Distances(rs []SearchResult) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Distance
	}
	return out
}

// ComputeRecall computes recall@k by comparing results against ground truth.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[uint64]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}
