package tree

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/spatial"
)

// pending is an entry waiting to be (re)inserted at a level.
type pending struct {
	entry node.Entry
	level int
}

// insertion carries the per-call state of one Insert: the levels that
// already performed a forced reinsertion and the queue of entries still to
// be placed.
type insertion struct {
	t          *Tree
	reinserted map[int]bool
	queue      []pending
}

func (t *Tree) newInsertion() *insertion {
	return &insertion{t: t, reinserted: make(map[int]bool)}
}

// Insert adds the point p with the given object id. The point is copied.
// Duplicate ids are not detected; the caller owns id uniqueness.
func (t *Tree) Insert(ctx context.Context, id uint64, p spatial.Point) error {
	if err := t.checkDim(p); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ins := t.newInsertion()
	if err := ins.run(ctx, node.LeafEntry(id, p), 0); err != nil {
		return err
	}
	t.count++
	return nil
}

// run places e at level and drains the reinsertion queue it causes.
func (ins *insertion) run(ctx context.Context, e node.Entry, level int) error {
	ins.queue = append(ins.queue, pending{entry: e, level: level})
	for len(ins.queue) > 0 {
		p := ins.queue[0]
		ins.queue = ins.queue[1:]
		if err := ins.insertAt(ctx, p.entry, p.level); err != nil {
			return err
		}
	}
	return nil
}

func (ins *insertion) insertAt(ctx context.Context, e node.Entry, level int) error {
	t := ins.t
	path, idx, err := t.choosePath(ctx, e.MBR, level)
	if err != nil {
		return err
	}
	target := path[len(path)-1]
	target.Entries = append(target.Entries, e)
	if !target.Leaf {
		if err := t.setParent(ctx, e.Child, target.ID); err != nil {
			return err
		}
	}
	return ins.adjust(ctx, path, idx)
}

// choosePath descends from the root to the node at level that should
// receive an entry with box m. idx[i] is the slot of path[i] in path[i-1].
func (t *Tree) choosePath(ctx context.Context, m spatial.MBR, level int) ([]*node.Node, []int, error) {
	n, err := t.fetch(ctx, t.root)
	if err != nil {
		return nil, nil, err
	}
	if level > n.Level {
		return nil, nil, invariantf("insert at level %d above root level %d", level, n.Level)
	}
	path := []*node.Node{n}
	idx := []int{-1}
	for n.Level > level {
		i := chooseSubtree(n, m)
		if i < 0 {
			return nil, nil, invariantf("directory page %d is empty", n.ID)
		}
		child, err := t.fetch(ctx, n.Entries[i].Child)
		if err != nil {
			return nil, nil, err
		}
		path = append(path, child)
		idx = append(idx, i)
		n = child
	}
	return path, idx, nil
}

// chooseSubtree returns the entry needing the least volume enlargement to
// cover m. Ties go to the smaller volume, then to the lower index.
func chooseSubtree(n *node.Node, m spatial.MBR) int {
	best := -1
	bestEnl, bestVol := math.Inf(1), math.Inf(1)
	for i := range n.Entries {
		enl := spatial.Enlargement(n.Entries[i].MBR, m)
		vol := spatial.Volume(n.Entries[i].MBR)
		if enl < bestEnl || (enl == bestEnl && vol < bestVol) {
			best, bestEnl, bestVol = i, enl, vol
		}
	}
	return best
}

// adjust resolves overflows bottom-up along path and repairs the boxes and
// counts of every ancestor.
func (ins *insertion) adjust(ctx context.Context, path []*node.Node, idx []int) error {
	t := ins.t
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		var sibling *node.Node
		if n.Len() > n.Capacity(t.settings.MaxEntries) {
			var err error
			if sibling, err = ins.overflow(ctx, n, i == 0); err != nil {
				return err
			}
		}

		if i == 0 {
			if sibling != nil {
				return t.growRoot(ctx, n, sibling)
			}
			return t.write(ctx, n)
		}

		parent := path[i-1]
		n.Parent = parent.ID
		if err := t.write(ctx, n); err != nil {
			return err
		}
		parent.Entries[idx[i]] = node.DirectoryEntry(n)
		if sibling != nil {
			sibling.Parent = parent.ID
			if err := t.write(ctx, sibling); err != nil {
				return err
			}
			parent.Entries = append(parent.Entries, node.DirectoryEntry(sibling))
		}
	}
	return nil
}

// overflow handles a node holding more entries than its capacity. It either
// queues a forced reinsertion, turns n into a (larger) supernode, or splits
// it and returns the new sibling.
func (ins *insertion) overflow(ctx context.Context, n *node.Node, isRoot bool) (*node.Node, error) {
	t := ins.t
	s := t.settings

	if !isRoot && !n.IsSupernode() && s.ReinsertFraction > 0 && !ins.reinserted[n.Level] {
		ins.reinserted[n.Level] = true
		if removed := t.pickReinsert(n); len(removed) > 0 {
			for _, e := range removed {
				ins.queue = append(ins.queue, pending{entry: e, level: n.Level})
			}
			t.reinsertions.Add(uint64(len(removed)))
			t.logger.Debug("forced reinsertion", "page", n.ID, "level", n.Level, "entries", len(removed))
			return nil, nil
		}
	}

	d := t.chooseSplit(n)
	if t.onSplit != nil {
		t.onSplit(n.Level, d)
	}

	if d.Kind == Supernode {
		n.Blocks++
		t.supernodes.Add(1)
		t.logger.Debug("supernode", "page", n.ID, "level", n.Level, "blocks", n.Blocks, "overlap", d.Overlap)
		return nil, nil
	}

	sibling, err := t.store.Allocate(ctx, n.Leaf, n.Level)
	if err != nil {
		return nil, err
	}
	n.Entries = d.Left
	sibling.Entries = d.Right
	n.Blocks = blocksFor(len(d.Left), s.MaxEntries)
	sibling.Blocks = blocksFor(len(d.Right), s.MaxEntries)
	if !n.Leaf {
		for i := range sibling.Entries {
			if err := t.setParent(ctx, sibling.Entries[i].Child, sibling.ID); err != nil {
				return nil, err
			}
		}
	}

	t.splits.Add(1)
	if d.Kind == OverlapMinimalSplit {
		t.overlapSplits.Add(1)
	}
	t.logger.Debug("split",
		"page", n.ID, "sibling", sibling.ID, "level", n.Level,
		"kind", d.Kind.String(), "forced", d.Forced,
		"left", len(d.Left), "right", len(d.Right))
	return sibling, nil
}

// pickReinsert removes the entries of n farthest from the center of its box
// and returns them closest first. At least MinEntries entries stay in n.
func (t *Tree) pickReinsert(n *node.Node) []node.Entry {
	r := int(math.Floor(t.settings.ReinsertFraction * float64(n.Len())))
	r = min(r, n.Len()-t.settings.MinEntries)
	if r <= 0 {
		return nil
	}

	center := n.MBR().Center()
	type ranked struct {
		pos  int
		dist float64
	}
	order := make([]ranked, n.Len())
	for i := range n.Entries {
		order[i] = ranked{pos: i, dist: distance.SquaredEuclidean{}.Distance(n.Entries[i].MBR.Center(), center)}
	}
	slices.SortStableFunc(order, func(a, b ranked) int { return cmp.Compare(b.dist, a.dist) })

	drop := make(map[int]bool, r)
	removed := make([]node.Entry, 0, r)
	for _, o := range order[:r] {
		drop[o.pos] = true
		removed = append(removed, n.Entries[o.pos])
	}
	slices.Reverse(removed)

	kept := make([]node.Entry, 0, n.Len()-r)
	for i := range n.Entries {
		if !drop[i] {
			kept = append(kept, n.Entries[i])
		}
	}
	n.Entries = kept
	return removed
}

// growRoot installs a new root above the split halves old and sibling.
func (t *Tree) growRoot(ctx context.Context, old, sibling *node.Node) error {
	root, err := t.store.Allocate(ctx, false, old.Level+1)
	if err != nil {
		return err
	}
	old.Parent, sibling.Parent = root.ID, root.ID
	if err := t.write(ctx, old); err != nil {
		return err
	}
	if err := t.write(ctx, sibling); err != nil {
		return err
	}
	root.Entries = []node.Entry{node.DirectoryEntry(old), node.DirectoryEntry(sibling)}
	if err := t.write(ctx, root); err != nil {
		return err
	}
	t.root = root.ID
	t.height++
	t.logger.Debug("root grown", "root", root.ID, "height", t.height)
	return nil
}

func (t *Tree) setParent(ctx context.Context, child, parent node.PageID) error {
	c, err := t.fetch(ctx, child)
	if err != nil {
		return err
	}
	if c.Parent == parent {
		return nil
	}
	c.Parent = parent
	return t.write(ctx, c)
}
