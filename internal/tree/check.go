package tree

import (
	"context"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/spatial"
)

// Validate walks the whole tree and reports the first structural invariant
// violation as an ErrInvariant error.
func (t *Tree) Validate(ctx context.Context) error {
	root, err := t.fetch(ctx, t.root)
	if err != nil {
		return err
	}
	if root.Level != t.height-1 {
		return invariantf("root level %d, height %d", root.Level, t.height)
	}
	if root.Parent != node.NoPage {
		return invariantf("root page %d has parent %d", root.ID, root.Parent)
	}
	if !root.Leaf && root.Len() < 2 {
		return invariantf("directory root page %d has %d entries", root.ID, root.Len())
	}

	_, count, err := t.check(ctx, root, true)
	if err != nil {
		return err
	}
	if count != t.count {
		return invariantf("tree holds %d objects, expected %d", count, t.count)
	}
	return nil
}

// check validates the subtree of n and returns its tight box and count.
func (t *Tree) check(ctx context.Context, n *node.Node, isRoot bool) (spatial.MBR, uint64, error) {
	if err := ctx.Err(); err != nil {
		return spatial.MBR{}, 0, err
	}
	s := t.settings

	if n.Leaf != (n.Level == 0) {
		return spatial.MBR{}, 0, invariantf("page %d: leaf=%v at level %d", n.ID, n.Leaf, n.Level)
	}
	if n.Blocks < 1 || n.Blocks > s.MaxSupernodeBlocks {
		return spatial.MBR{}, 0, invariantf("page %d: %d blocks", n.ID, n.Blocks)
	}
	if n.Len() > n.Capacity(s.MaxEntries) {
		return spatial.MBR{}, 0, invariantf("page %d: %d entries exceed capacity %d", n.ID, n.Len(), n.Capacity(s.MaxEntries))
	}
	if !isRoot && !n.IsSupernode() && n.Len() < s.minFill(n.Leaf) {
		return spatial.MBR{}, 0, invariantf("page %d: %d entries below minimum %d", n.ID, n.Len(), s.minFill(n.Leaf))
	}

	var (
		box   spatial.MBR
		count uint64
	)
	for i := range n.Entries {
		e := &n.Entries[i]
		if e.MBR.Dim() != t.dim {
			return spatial.MBR{}, 0, invariantf("page %d entry %d: dimension %d", n.ID, i, e.MBR.Dim())
		}
		box.Extend(e.MBR)

		if n.Leaf {
			if e.Count != 1 || e.Child != node.NoPage {
				return spatial.MBR{}, 0, invariantf("page %d entry %d: malformed leaf entry", n.ID, i)
			}
			count++
			continue
		}

		child, err := t.fetch(ctx, e.Child)
		if err != nil {
			return spatial.MBR{}, 0, err
		}
		if child.Level != n.Level-1 {
			return spatial.MBR{}, 0, invariantf("page %d: child %d at level %d under level %d", n.ID, child.ID, child.Level, n.Level)
		}
		if child.Parent != n.ID {
			return spatial.MBR{}, 0, invariantf("page %d: parent link %d, expected %d", child.ID, child.Parent, n.ID)
		}
		childBox, childCount, err := t.check(ctx, child, false)
		if err != nil {
			return spatial.MBR{}, 0, err
		}
		if !e.MBR.Equal(childBox) {
			return spatial.MBR{}, 0, invariantf("page %d entry %d: box %v is not the tight box %v of page %d", n.ID, i, e.MBR, childBox, child.ID)
		}
		if e.Count != childCount {
			return spatial.MBR{}, 0, invariantf("page %d entry %d: count %d, subtree holds %d", n.ID, i, e.Count, childCount)
		}
		count += childCount
	}
	return box, count, nil
}
