package tree

import (
	"context"
	"math"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/queue"
	"github.com/hupe1980/xtree/spatial"
)

// KNN returns the k objects nearest to q by ascending distance. Fewer than k
// results are returned when the tree holds fewer objects.
//
// The search is best-first over a min-heap of page bounds. Directory entries
// whose box contains q (bound 0) are expanded greedily instead of being
// queued, which tightens the pruning distance early.
func (t *Tree) KNN(ctx context.Context, q spatial.Point, k int) ([]queue.Item, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if err := t.checkDim(q); err != nil {
		return nil, err
	}

	s := &knnSearch{t: t, q: q, heap: queue.NewKNNHeap(k), pq: queue.NewMin(32)}
	s.pq.Push(queue.Item{ID: uint64(t.root), Distance: 0})

	maxDist := math.Inf(1)
	for s.pq.Len() > 0 {
		top, _ := s.pq.Pop()
		if top.Distance > maxDist {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if maxDist, err = s.expand(ctx, node.PageID(top.ID), maxDist); err != nil {
			return nil, err
		}
	}
	return s.heap.Sorted(), nil
}

type knnSearch struct {
	t    *Tree
	q    spatial.Point
	heap *queue.KNNHeap
	pq   *queue.PriorityQueue
}

// expand processes one page and returns the tightened pruning distance.
func (s *knnSearch) expand(ctx context.Context, id node.PageID, maxDist float64) (float64, error) {
	n, err := s.t.fetch(ctx, id)
	if err != nil {
		return maxDist, err
	}

	if n.Leaf {
		for i := range n.Entries {
			d := s.t.dist.Distance(s.q, n.Entries[i].Point())
			s.t.distanceCalcs.Add(1)
			if d <= maxDist {
				s.heap.Add(d, n.Entries[i].ObjectID)
				maxDist = s.heap.KNNDistance()
			}
		}
		return maxDist, nil
	}

	for i := range n.Entries {
		bound := s.t.dist.MinDist(n.Entries[i].MBR, s.q)
		s.t.distanceCalcs.Add(1)
		switch {
		case bound <= 0:
			if maxDist, err = s.expand(ctx, n.Entries[i].Child, maxDist); err != nil {
				return maxDist, err
			}
		case bound <= maxDist:
			s.pq.Push(queue.Item{ID: uint64(n.Entries[i].Child), Distance: bound})
		}
	}
	return maxDist, nil
}
