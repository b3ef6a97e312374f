package tree

import (
	"context"
	"fmt"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/spatial"
)

// Delete removes the object id stored at p. It reports false when no such
// entry exists.
//
// Underfull nodes on the path are dissolved and their entries reinserted at
// their original level. A directory root left with a single child is
// replaced by that child.
func (t *Tree) Delete(ctx context.Context, id uint64, p spatial.Point) (bool, error) {
	if err := t.checkDim(p); err != nil {
		return false, err
	}
	path, pos, err := t.findLeaf(ctx, id, p)
	if err != nil || path == nil {
		return false, err
	}

	leaf := path[len(path)-1]
	leaf.Entries = append(leaf.Entries[:pos], leaf.Entries[pos+1:]...)

	orphans, err := t.condense(ctx, path)
	if err != nil {
		return false, err
	}
	t.count--

	if len(orphans) > 0 {
		ins := t.newInsertion()
		for _, o := range orphans {
			if err := ins.run(ctx, o.entry, o.level); err != nil {
				return false, fmt.Errorf("tree: reinsert orphan: %w", err)
			}
		}
	}
	return true, t.shrinkRoot(ctx)
}

// findLeaf locates the leaf entry (id, p). pos is the slot in the leaf.
func (t *Tree) findLeaf(ctx context.Context, id uint64, p spatial.Point) ([]*node.Node, int, error) {
	root, err := t.fetch(ctx, t.root)
	if err != nil {
		return nil, -1, err
	}
	var path []*node.Node
	var find func(n *node.Node) (int, error)
	find = func(n *node.Node) (int, error) {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		path = append(path, n)
		for i := range n.Entries {
			e := &n.Entries[i]
			if n.Leaf {
				if e.ObjectID == id && e.MBR.ContainsPoint(p) {
					return i, nil
				}
				continue
			}
			if !e.MBR.ContainsPoint(p) {
				continue
			}
			child, err := t.fetch(ctx, e.Child)
			if err != nil {
				return -1, err
			}
			if pos, err := find(child); err != nil || pos >= 0 {
				return pos, err
			}
		}
		path = path[:len(path)-1]
		return -1, nil
	}

	pos, err := find(root)
	if err != nil || pos < 0 {
		return nil, -1, err
	}
	return path, pos, nil
}

// condense walks path bottom-up after a removal. Underfull nodes are
// released and their entries returned for reinsertion; the others get their
// parent entry repaired.
func (t *Tree) condense(ctx context.Context, path []*node.Node) ([]pending, error) {
	s := t.settings
	var orphans []pending
	for i := len(path) - 1; i > 0; i-- {
		n := path[i]
		parent := path[i-1]
		slot := parent.IndexOf(n.ID)
		if slot < 0 {
			return nil, invariantf("page %d missing from parent %d", n.ID, parent.ID)
		}

		if n.IsSupernode() {
			n.Blocks = max(1, min(n.Blocks, blocksFor(n.Len(), s.MaxEntries)))
		}

		if !n.IsSupernode() && n.Len() < s.minFill(n.Leaf) {
			parent.Entries = append(parent.Entries[:slot], parent.Entries[slot+1:]...)
			for _, e := range n.Entries {
				orphans = append(orphans, pending{entry: e, level: n.Level})
			}
			if err := t.store.Remove(ctx, n.ID); err != nil {
				return nil, fmt.Errorf("tree: remove page %d: %w", n.ID, err)
			}
			t.logger.Debug("node dissolved", "page", n.ID, "level", n.Level, "orphans", n.Len())
			continue
		}

		if err := t.write(ctx, n); err != nil {
			return nil, err
		}
		parent.Entries[slot] = node.DirectoryEntry(n)
	}
	return orphans, t.write(ctx, path[0])
}

// shrinkRoot replaces a directory root holding a single entry by its child.
func (t *Tree) shrinkRoot(ctx context.Context) error {
	for {
		root, err := t.fetch(ctx, t.root)
		if err != nil {
			return err
		}
		if root.Leaf || root.Len() != 1 {
			return nil
		}
		child, err := t.fetch(ctx, root.Entries[0].Child)
		if err != nil {
			return err
		}
		child.Parent = node.NoPage
		if err := t.write(ctx, child); err != nil {
			return err
		}
		if err := t.store.Remove(ctx, root.ID); err != nil {
			return fmt.Errorf("tree: remove page %d: %w", root.ID, err)
		}
		t.root = child.ID
		t.height--
		t.logger.Debug("root shrunk", "root", child.ID, "height", t.height)
	}
}
