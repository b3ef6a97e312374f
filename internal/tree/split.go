package tree

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/spatial"
)

// SplitKind tags the outcome of the overflow decision of a node.
type SplitKind int

const (
	// StandardSplit is the R*-tree topological split.
	StandardSplit SplitKind = iota
	// OverlapMinimalSplit is the X-tree split that minimizes overlap over all
	// axes, accepting groups down to the relative minimum fanout.
	OverlapMinimalSplit
	// Supernode extends the node by one block instead of splitting it.
	Supernode
)

func (k SplitKind) String() string {
	switch k {
	case StandardSplit:
		return "standard"
	case OverlapMinimalSplit:
		return "overlap-minimal"
	case Supernode:
		return "supernode"
	default:
		return fmt.Sprintf("SplitKind(%d)", int(k))
	}
}

// SplitDecision is returned by the split selection.
type SplitDecision struct {
	Kind        SplitKind
	Left, Right []node.Entry // empty for Supernode
	// Overlap is the overlap fraction of the evaluated distribution under the
	// configured metric. For Supernode it is the best one that was rejected.
	Overlap float64
	// Forced is set when a standard split was taken because the node already
	// reached the supernode cap.
	Forced bool
}

// chooseSplit decides how to resolve the overflow of n.
func (t *Tree) chooseSplit(n *node.Node) SplitDecision {
	s := t.settings
	left, right := topologicalSplit(n.Entries, s.MinEntries)
	std := SplitDecision{Kind: StandardSplit, Left: left, Right: right}
	if n.Leaf || s.Variant != XTree {
		return std
	}

	std.Overlap = t.overlap(left, right)
	if std.Overlap <= s.MaxOverlap {
		return std
	}

	if om, ok := t.overlapMinimalSplit(n.Entries, s.minFanout()); ok {
		if om.Overlap <= s.MaxOverlap {
			return om
		}
		std.Overlap = math.Min(std.Overlap, om.Overlap)
	}

	if n.Blocks < s.MaxSupernodeBlocks {
		return SplitDecision{Kind: Supernode, Overlap: std.Overlap}
	}
	std.Forced = true
	return std
}

// sortedRun is one ordering of the entries along an axis, with the running
// bounding boxes of every prefix and suffix.
type sortedRun struct {
	entries []node.Entry
	prefix  []spatial.MBR // prefix[i] bounds entries[:i+1]
	suffix  []spatial.MBR // suffix[i] bounds entries[i:]
}

func newSortedRun(entries []node.Entry, axis int, byMax bool) sortedRun {
	r := sortedRun{entries: slices.Clone(entries)}
	slices.SortStableFunc(r.entries, func(a, b node.Entry) int {
		if byMax {
			return cmp.Or(cmp.Compare(a.MBR.Max[axis], b.MBR.Max[axis]), cmp.Compare(a.MBR.Min[axis], b.MBR.Min[axis]))
		}
		return cmp.Or(cmp.Compare(a.MBR.Min[axis], b.MBR.Min[axis]), cmp.Compare(a.MBR.Max[axis], b.MBR.Max[axis]))
	})

	n := len(r.entries)
	r.prefix = make([]spatial.MBR, n)
	r.suffix = make([]spatial.MBR, n)
	var acc spatial.MBR
	for i := range n {
		acc.Extend(r.entries[i].MBR)
		r.prefix[i] = acc.Clone()
	}
	acc = spatial.MBR{}
	for i := n - 1; i >= 0; i-- {
		acc.Extend(r.entries[i].MBR)
		r.suffix[i] = acc.Clone()
	}
	return r
}

// split returns the boxes of the distribution whose left group holds the
// first k entries.
func (r sortedRun) split(k int) (spatial.MBR, spatial.MBR) {
	return r.prefix[k-1], r.suffix[k]
}

func (r sortedRun) groups(k int) ([]node.Entry, []node.Entry) {
	return slices.Clone(r.entries[:k]), slices.Clone(r.entries[k:])
}

func runs(entries []node.Entry, axis int) [2]sortedRun {
	return [2]sortedRun{newSortedRun(entries, axis, false), newSortedRun(entries, axis, true)}
}

// topologicalSplit is the R*-tree split: the axis with the smallest margin
// sum over all distributions, then on that axis the distribution with the
// least overlap volume, ties broken by the smaller volume sum. Both groups
// hold at least minGroup entries.
func topologicalSplit(entries []node.Entry, minGroup int) ([]node.Entry, []node.Entry) {
	n := len(entries)
	dim := entries[0].MBR.Dim()

	bestMargin := math.Inf(1)
	var axisRuns [2]sortedRun
	for axis := range dim {
		rs := runs(entries, axis)
		var margin float64
		for _, r := range rs {
			for k := minGroup; k <= n-minGroup; k++ {
				a, b := r.split(k)
				margin += spatial.Margin(a) + spatial.Margin(b)
			}
		}
		if margin < bestMargin {
			bestMargin, axisRuns = margin, rs
		}
	}

	var (
		bestRun     sortedRun
		bestK       int
		bestOverlap = math.Inf(1)
		bestVolume  = math.Inf(1)
	)
	for _, r := range axisRuns {
		for k := minGroup; k <= n-minGroup; k++ {
			a, b := r.split(k)
			ov := spatial.OverlapVolume(a, b)
			vol := spatial.Volume(a) + spatial.Volume(b)
			if ov < bestOverlap || (ov == bestOverlap && vol < bestVolume) {
				bestRun, bestK, bestOverlap, bestVolume = r, k, ov, vol
			}
		}
	}
	return bestRun.groups(bestK)
}

// overlapMinimalSplit searches every axis and ordering for the distribution
// with the smallest overlap fraction, ties broken by the smaller margin sum.
func (t *Tree) overlapMinimalSplit(entries []node.Entry, minGroup int) (SplitDecision, bool) {
	n := len(entries)
	if n < 2*minGroup {
		return SplitDecision{}, false
	}

	var (
		bestRun     sortedRun
		bestK       int
		bestOverlap = math.Inf(1)
		bestMargin  = math.Inf(1)
	)
	for axis := range entries[0].MBR.Dim() {
		for _, r := range runs(entries, axis) {
			for k := minGroup; k <= n-minGroup; k++ {
				a, b := r.split(k)
				ov := t.overlapFraction(a, b, entries)
				margin := spatial.Margin(a) + spatial.Margin(b)
				if ov < bestOverlap || (ov == bestOverlap && margin < bestMargin) {
					bestRun, bestK, bestOverlap, bestMargin = r, k, ov, margin
				}
			}
		}
	}
	if bestRun.entries == nil {
		return SplitDecision{}, false
	}
	left, right := bestRun.groups(bestK)
	return SplitDecision{Kind: OverlapMinimalSplit, Left: left, Right: right, Overlap: bestOverlap}, true
}

// overlap measures two entry groups with the configured metric.
func (t *Tree) overlap(left, right []node.Entry) float64 {
	var a, b spatial.MBR
	for i := range left {
		a.Extend(left[i].MBR)
	}
	for i := range right {
		b.Extend(right[i].MBR)
	}
	return t.overlapFraction(a, b, slices.Concat(left, right))
}

// overlapFraction returns the overlap of the boxes a and b. entries are the
// members of both groups; they are only consulted by DataOverlap.
func (t *Tree) overlapFraction(a, b spatial.MBR, entries []node.Entry) float64 {
	switch t.settings.OverlapMetric {
	case DataOverlap:
		region, ok := spatial.Intersection(a, b)
		if !ok {
			return 0
		}
		var inside, total uint64
		for i := range entries {
			total += entries[i].Count
			if entries[i].MBR.Intersects(region) {
				inside += entries[i].Count
			}
		}
		if total == 0 {
			return 0
		}
		return float64(inside) / float64(total)
	default:
		ov := spatial.OverlapVolume(a, b)
		if ov == 0 {
			return 0
		}
		return ov / (spatial.Volume(a) + spatial.Volume(b))
	}
}

// blocksFor returns the number of blocks a node with n entries occupies.
func blocksFor(n, maxEntries int) int {
	return max(1, (n+maxEntries-1)/maxEntries)
}
