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

// Range returns every object within radius of q, by ascending distance.
func (t *Tree) Range(ctx context.Context, q spatial.Point, radius float64) ([]queue.Item, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, ErrInvalidRadius
	}
	if err := t.checkDim(q); err != nil {
		return nil, err
	}

	var out []queue.Item
	err := t.walk(ctx,
		func(m spatial.MBR) bool {
			t.distanceCalcs.Add(1)
			return t.dist.MinDist(m, q) <= radius
		},
		func(e *node.Entry) bool {
			d := t.dist.Distance(q, e.Point())
			t.distanceCalcs.Add(1)
			if d <= radius {
				out = append(out, queue.Item{ID: e.ObjectID, Distance: d})
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b queue.Item) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Search calls fn for every object whose point lies inside box, until fn
// returns false. The point passed to fn must not be modified.
func (t *Tree) Search(ctx context.Context, box spatial.MBR, fn func(id uint64, p spatial.Point) bool) error {
	if box.Dim() != t.dim {
		return &ErrDimensionMismatch{Expected: t.dim, Actual: box.Dim()}
	}
	return t.walk(ctx,
		box.Intersects,
		func(e *node.Entry) bool {
			if !box.ContainsPoint(e.Point()) {
				return true
			}
			return fn(e.ObjectID, e.Point())
		})
}

// Scan calls fn for every indexed object, until fn returns false.
func (t *Tree) Scan(ctx context.Context, fn func(id uint64, p spatial.Point) bool) error {
	return t.walk(ctx,
		func(spatial.MBR) bool { return true },
		func(e *node.Entry) bool { return fn(e.ObjectID, e.Point()) })
}

// walk visits the leaf entries of every subtree whose box passes descend,
// depth first. It stops early when visit returns false.
func (t *Tree) walk(ctx context.Context, descend func(spatial.MBR) bool, visit func(*node.Entry) bool) error {
	stack := []node.PageID{t.root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := t.fetch(ctx, id)
		if err != nil {
			return err
		}
		for i := range n.Entries {
			e := &n.Entries[i]
			if n.Leaf {
				if !visit(e) {
					return nil
				}
				continue
			}
			if descend(e.MBR) {
				stack = append(stack, e.Child)
			}
		}
	}
	return nil
}
