package spatial

import (
	"fmt"
	"math"
	"slices"
)

// Point is a d-dimensional point.
type Point []float64

// Dim returns the dimensionality of the point.
func (p Point) Dim() int { return len(p) }

// MBR is an axis-aligned minimum bounding rectangle.
//
// Invariant: Min[i] <= Max[i] for every dimension i and len(Min) == len(Max).
type MBR struct {
	Min []float64
	Max []float64
}

// NewMBR creates an MBR from the given corners. It panics if the corners
// disagree on dimensionality or a lower bound exceeds its upper bound.
func NewMBR(lo, hi []float64) MBR {
	mustSameDim(len(lo), len(hi))
	for i := range lo {
		if lo[i] > hi[i] {
			panic(fmt.Sprintf("spatial: min[%d]=%v exceeds max[%d]=%v", i, lo[i], i, hi[i]))
		}
	}
	return MBR{Min: slices.Clone(lo), Max: slices.Clone(hi)}
}

// PointMBR returns the degenerate MBR covering exactly p.
func PointMBR(p Point) MBR {
	return MBR{Min: slices.Clone(p), Max: slices.Clone(p)}
}

// Dim returns the dimensionality of the box.
func (m MBR) Dim() int { return len(m.Min) }

// IsZero reports whether the box has no dimensions.
func (m MBR) IsZero() bool { return len(m.Min) == 0 }

// Clone returns a deep copy of m.
func (m MBR) Clone() MBR {
	return MBR{Min: slices.Clone(m.Min), Max: slices.Clone(m.Max)}
}

// Equal reports whether both boxes have identical bounds.
func (m MBR) Equal(o MBR) bool {
	return slices.Equal(m.Min, o.Min) && slices.Equal(m.Max, o.Max)
}

// Center returns the centroid of the box.
func (m MBR) Center() Point {
	c := make(Point, len(m.Min))
	for i := range m.Min {
		c[i] = (m.Min[i] + m.Max[i]) / 2
	}
	return c
}

// Extend grows m in place so that it also covers o.
func (m *MBR) Extend(o MBR) {
	if m.IsZero() {
		*m = o.Clone()
		return
	}
	mustSameDim(m.Dim(), o.Dim())
	for i := range m.Min {
		m.Min[i] = math.Min(m.Min[i], o.Min[i])
		m.Max[i] = math.Max(m.Max[i], o.Max[i])
	}
}

// Intersects reports whether the two boxes share at least one point.
func (m MBR) Intersects(o MBR) bool {
	mustSameDim(m.Dim(), o.Dim())
	for i := range m.Min {
		if m.Min[i] > o.Max[i] || m.Max[i] < o.Min[i] {
			return false
		}
	}
	return true
}

// Contains reports whether o lies completely inside m.
func (m MBR) Contains(o MBR) bool {
	mustSameDim(m.Dim(), o.Dim())
	for i := range m.Min {
		if o.Min[i] < m.Min[i] || o.Max[i] > m.Max[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside m (borders included).
func (m MBR) ContainsPoint(p Point) bool {
	mustSameDim(m.Dim(), len(p))
	for i := range m.Min {
		if p[i] < m.Min[i] || p[i] > m.Max[i] {
			return false
		}
	}
	return true
}

// Union gives the smallest bounding box containing both a and b.
func Union(a, b MBR) MBR {
	mustSameDim(a.Dim(), b.Dim())
	u := MBR{Min: make([]float64, a.Dim()), Max: make([]float64, a.Dim())}
	for i := range a.Min {
		u.Min[i] = math.Min(a.Min[i], b.Min[i])
		u.Max[i] = math.Max(a.Max[i], b.Max[i])
	}
	return u
}

// Volume is the product of the side lengths; degenerate boxes have volume 0.
func Volume(m MBR) float64 {
	if m.IsZero() {
		return 0
	}
	v := 1.0
	for i := range m.Min {
		v *= m.Max[i] - m.Min[i]
	}
	return v
}

// Margin is the sum of the side lengths, the R*-tree perimeter measure.
func Margin(m MBR) float64 {
	var s float64
	for i := range m.Min {
		s += m.Max[i] - m.Min[i]
	}
	return s
}

// OverlapVolume returns the volume of the intersection of a and b, or 0 if
// they are disjoint on any axis.
func OverlapVolume(a, b MBR) float64 {
	mustSameDim(a.Dim(), b.Dim())
	v := 1.0
	for i := range a.Min {
		lo := math.Max(a.Min[i], b.Min[i])
		hi := math.Min(a.Max[i], b.Max[i])
		if hi <= lo {
			return 0
		}
		v *= hi - lo
	}
	return v
}

// Intersection returns the common region of a and b. ok is false when the
// boxes are disjoint.
func Intersection(a, b MBR) (MBR, bool) {
	mustSameDim(a.Dim(), b.Dim())
	r := MBR{Min: make([]float64, a.Dim()), Max: make([]float64, a.Dim())}
	for i := range a.Min {
		r.Min[i] = math.Max(a.Min[i], b.Min[i])
		r.Max[i] = math.Min(a.Max[i], b.Max[i])
		if r.Min[i] > r.Max[i] {
			return MBR{}, false
		}
	}
	return r, true
}

// Enlargement returns how much volume existing would have to grow by to
// accommodate additional.
func Enlargement(existing, additional MBR) float64 {
	return Volume(Union(existing, additional)) - Volume(existing)
}

func mustSameDim(a, b int) {
	if a != b {
		panic(fmt.Sprintf("spatial: dimensionality mismatch (%d != %d)", a, b))
	}
}
