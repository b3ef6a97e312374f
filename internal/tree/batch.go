package tree

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/queue"
	"github.com/hupe1980/xtree/spatial"
)

// KNNBatch answers the k-nearest-neighbor query for every point of queries
// in one shared depth-first descent. Result i belongs to queries[i].
//
// Directory entries are visited by ascending minimum bound over all queries
// and a subtree is descended once as soon as any query may still improve
// from it. Leaves are scored against every query.
func (t *Tree) KNNBatch(ctx context.Context, queries []spatial.Point, k int) ([][]queue.Item, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	for _, q := range queries {
		if err := t.checkDim(q); err != nil {
			return nil, err
		}
	}
	if len(queries) == 0 {
		return nil, nil
	}

	heaps := make([]*queue.KNNHeap, len(queries))
	for i := range heaps {
		heaps[i] = queue.NewKNNHeap(k)
	}
	if err := t.batchNN(ctx, t.root, queries, heaps); err != nil {
		return nil, err
	}

	out := make([][]queue.Item, len(queries))
	for i, h := range heaps {
		out[i] = h.Sorted()
	}
	return out, nil
}

func (t *Tree) batchNN(ctx context.Context, id node.PageID, queries []spatial.Point, heaps []*queue.KNNHeap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := t.fetch(ctx, id)
	if err != nil {
		return err
	}

	if n.Leaf {
		for i := range n.Entries {
			p := n.Entries[i].Point()
			for j, q := range queries {
				d := t.dist.Distance(q, p)
				t.distanceCalcs.Add(1)
				if d <= heaps[j].KNNDistance() {
					heaps[j].Add(d, n.Entries[i].ObjectID)
				}
			}
		}
		return nil
	}

	type bounded struct {
		child node.PageID
		bound float64
	}
	entries := make([]bounded, n.Len())
	for i := range n.Entries {
		bound := math.Inf(1)
		for _, q := range queries {
			bound = math.Min(bound, t.dist.MinDist(n.Entries[i].MBR, q))
			t.distanceCalcs.Add(1)
		}
		entries[i] = bounded{child: n.Entries[i].Child, bound: bound}
	}
	slices.SortStableFunc(entries, func(a, b bounded) int { return cmp.Compare(a.bound, b.bound) })

	for _, e := range entries {
		for _, h := range heaps {
			if e.bound <= h.KNNDistance() {
				if err := t.batchNN(ctx, e.child, queries, heaps); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}
