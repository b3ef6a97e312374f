package tree

import (
	"context"

	"github.com/hupe1980/xtree/internal/node"
)

// Stats describes the shape of a tree and its work counters.
type Stats struct {
	Height         int
	Objects        uint64
	Nodes          int
	LeafNodes      int
	DirectoryNodes int
	Supernodes     int
	MaxBlocks      int
	// LeafFill is the average leaf occupancy relative to MaxEntries.
	LeafFill float64

	DistanceCalcs        uint64
	Splits               uint64
	OverlapMinimalSplits uint64
	SupernodeExtensions  uint64
	Reinsertions         uint64
}

// Stats walks the tree and returns its statistics.
func (t *Tree) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Height:               t.height,
		Objects:              t.count,
		DistanceCalcs:        t.distanceCalcs.Load(),
		Splits:               t.splits.Load(),
		OverlapMinimalSplits: t.overlapSplits.Load(),
		SupernodeExtensions:  t.supernodes.Load(),
		Reinsertions:         t.reinsertions.Load(),
	}

	var leafEntries int
	stack := []node.PageID{t.root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, err := t.fetch(ctx, id)
		if err != nil {
			return Stats{}, err
		}

		st.Nodes++
		st.MaxBlocks = max(st.MaxBlocks, n.Blocks)
		if n.IsSupernode() {
			st.Supernodes++
		}
		if n.Leaf {
			st.LeafNodes++
			leafEntries += n.Len()
			continue
		}
		st.DirectoryNodes++
		for i := range n.Entries {
			stack = append(stack, n.Entries[i].Child)
		}
	}
	if st.LeafNodes > 0 {
		st.LeafFill = float64(leafEntries) / float64(st.LeafNodes*t.settings.MaxEntries)
	}
	return st, nil
}

// DistanceCalcs returns the number of distance and bound evaluations made
// by queries so far.
func (t *Tree) DistanceCalcs() uint64 { return t.distanceCalcs.Load() }
