package distance

import (
	"fmt"
	"math"

	"github.com/hupe1980/xtree/spatial"
)

// Func is a spatial distance function usable by the index.
//
// MinDist must be a lower bound of Distance(p, q) for every point p inside
// the box: all pruning in the tree relies on it never overestimating.
type Func interface {
	// Name returns the stable name of the function (persisted in manifests).
	Name() string
	// MinDist returns the minimum distance between q and any point in m.
	MinDist(m spatial.MBR, q spatial.Point) float64
	// Distance returns the distance between two points.
	Distance(a, b spatial.Point) float64
}

// Metric identifies a built-in distance function.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricSquaredEuclidean
	MetricManhattan
	MetricMaximum
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricSquaredEuclidean:
		return "squared-euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricMaximum:
		return "maximum"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean{}, nil
	case MetricSquaredEuclidean:
		return SquaredEuclidean{}, nil
	case MetricManhattan:
		return Manhattan{}, nil
	case MetricMaximum:
		return Maximum{}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// ByName returns a built-in distance function by its stable name.
func ByName(name string) (Func, bool) {
	for _, m := range []Metric{MetricEuclidean, MetricSquaredEuclidean, MetricManhattan, MetricMaximum} {
		if m.String() == name {
			f, _ := Provider(m)
			return f, true
		}
	}
	return nil, false
}

// gap returns how far v lies outside [lo, hi] (0 if inside).
func gap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// SquaredEuclidean is the squared L2 distance.
type SquaredEuclidean struct{}

func (SquaredEuclidean) Name() string { return MetricSquaredEuclidean.String() }

func (SquaredEuclidean) MinDist(m spatial.MBR, q spatial.Point) float64 {
	var s float64
	for i, v := range q {
		d := gap(v, m.Min[i], m.Max[i])
		s += d * d
	}
	return s
}

func (SquaredEuclidean) Distance(a, b spatial.Point) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// Euclidean is the L2 distance.
type Euclidean struct{}

func (Euclidean) Name() string { return MetricEuclidean.String() }

func (Euclidean) MinDist(m spatial.MBR, q spatial.Point) float64 {
	return math.Sqrt(SquaredEuclidean{}.MinDist(m, q))
}

func (Euclidean) Distance(a, b spatial.Point) float64 {
	return math.Sqrt(SquaredEuclidean{}.Distance(a, b))
}

// Manhattan is the L1 distance.
type Manhattan struct{}

func (Manhattan) Name() string { return MetricManhattan.String() }

func (Manhattan) MinDist(m spatial.MBR, q spatial.Point) float64 {
	var s float64
	for i, v := range q {
		s += gap(v, m.Min[i], m.Max[i])
	}
	return s
}

func (Manhattan) Distance(a, b spatial.Point) float64 {
	var s float64
	for i := range a {
		s += math.Abs(a[i] - b[i])
	}
	return s
}

// Maximum is the L-infinity (Chebyshev) distance.
type Maximum struct{}

func (Maximum) Name() string { return MetricMaximum.String() }

func (Maximum) MinDist(m spatial.MBR, q spatial.Point) float64 {
	var s float64
	for i, v := range q {
		s = math.Max(s, gap(v, m.Min[i], m.Max[i]))
	}
	return s
}

func (Maximum) Distance(a, b spatial.Point) float64 {
	var s float64
	for i := range a {
		s = math.Max(s, math.Abs(a[i]-b[i]))
	}
	return s
}
