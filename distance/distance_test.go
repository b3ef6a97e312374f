package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/xtree/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allFuncs() []Func {
	return []Func{Euclidean{}, SquaredEuclidean{}, Manhattan{}, Maximum{}}
}

func TestDistance(t *testing.T) {
	a := spatial.Point{1, 2}
	b := spatial.Point{4, 6}

	tests := []struct {
		fn       Func
		expected float64
	}{
		{Euclidean{}, 5},
		{SquaredEuclidean{}, 25},
		{Manhattan{}, 7},
		{Maximum{}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.fn.Name(), func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.fn.Distance(a, b), 1e-12)
			assert.InDelta(t, tt.expected, tt.fn.Distance(b, a), 1e-12)
			assert.Equal(t, 0.0, tt.fn.Distance(a, a))
		})
	}
}

func TestMinDist(t *testing.T) {
	box := spatial.NewMBR([]float64{0, 0}, []float64{2, 2})

	for _, fn := range allFuncs() {
		t.Run(fn.Name(), func(t *testing.T) {
			assert.Equal(t, 0.0, fn.MinDist(box, spatial.Point{1, 1}), "inside")
			assert.Equal(t, 0.0, fn.MinDist(box, spatial.Point{2, 0}), "on corner")
			// For a degenerate box MinDist is the point distance.
			p := spatial.Point{3, -4}
			q := spatial.Point{0, 0}
			assert.InDelta(t, fn.Distance(p, q), fn.MinDist(spatial.PointMBR(p), q), 1e-12)
		})
	}

	assert.InDelta(t, 5.0, Euclidean{}.MinDist(box, spatial.Point{5, 6}), 1e-12)
}

// MinDist must never exceed the distance to any point inside the box.
func TestMinDistIsLowerBound(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for _, fn := range allFuncs() {
		t.Run(fn.Name(), func(t *testing.T) {
			for i := 0; i < 500; i++ {
				lo := []float64{rnd.Float64(), rnd.Float64(), rnd.Float64()}
				hi := []float64{lo[0] + rnd.Float64(), lo[1] + rnd.Float64(), lo[2] + rnd.Float64()}
				box := spatial.NewMBR(lo, hi)
				q := spatial.Point{rnd.Float64()*4 - 1, rnd.Float64()*4 - 1, rnd.Float64()*4 - 1}

				inside := make(spatial.Point, 3)
				for d := range inside {
					inside[d] = lo[d] + rnd.Float64()*(hi[d]-lo[d])
				}
				require.LessOrEqual(t, fn.MinDist(box, q), fn.Distance(inside, q)+1e-12)
			}
		})
	}
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricEuclidean, MetricSquaredEuclidean, MetricManhattan, MetricMaximum} {
		fn, err := Provider(m)
		require.NoError(t, err)
		assert.Equal(t, m.String(), fn.Name())

		byName, ok := ByName(m.String())
		require.True(t, ok)
		assert.Equal(t, fn, byName)
	}

	_, err := Provider(Metric(99))
	assert.Error(t, err)

	_, ok := ByName("cosine")
	assert.False(t, ok)
}

func TestEuclideanMatchesSquared(t *testing.T) {
	a := spatial.Point{0.5, -3, 7}
	b := spatial.Point{2, 1, -1}
	assert.InDelta(t, math.Sqrt(SquaredEuclidean{}.Distance(a, b)), Euclidean{}.Distance(a, b), 1e-12)
}
