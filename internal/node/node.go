// Package node defines the page-resident tree node and entry model.
//
// Nodes reference each other only through PageIDs; the page store owns the
// storage and may evict and reload any node.
package node

import (
	"math"

	"github.com/hupe1980/xtree/spatial"
)

// PageID identifies a node in the page store.
type PageID uint32

// NoPage marks an absent page reference (e.g. the parent of the root).
const NoPage PageID = math.MaxUint32

// Entry is a slot of a node. Leaf entries reference a data object, directory
// entries reference a child node.
type Entry struct {
	MBR      spatial.MBR
	ObjectID uint64 // leaf entries only
	Child    PageID // directory entries only
	Count    uint64 // data objects beneath this entry; 1 for leaf entries
}

// LeafEntry creates the entry for a point object.
func LeafEntry(id uint64, p spatial.Point) Entry {
	return Entry{MBR: spatial.PointMBR(p), ObjectID: id, Child: NoPage, Count: 1}
}

// DirectoryEntry creates the entry referencing child, with its tight MBR.
func DirectoryEntry(child *Node) Entry {
	return Entry{MBR: child.MBR(), Child: child.ID, Count: child.Count()}
}

// Point returns the position of a point leaf entry.
func (e Entry) Point() spatial.Point { return spatial.Point(e.MBR.Min) }

// Node is an ordered sequence of entries.
type Node struct {
	ID     PageID
	Leaf   bool
	Level  int    // 0 for leaves, parent level = child level + 1
	Parent PageID // lookup aid only; NoPage for the root
	// Blocks is the number of MaxEntries-sized blocks the node may use. Values
	// above 1 mark an X-tree supernode.
	Blocks  int
	Entries []Entry
}

// New creates an empty node.
func New(id PageID, leaf bool, level int) *Node {
	return &Node{ID: id, Leaf: leaf, Level: level, Parent: NoPage, Blocks: 1}
}

// Len returns the number of entries.
func (n *Node) Len() int { return len(n.Entries) }

// IsSupernode reports whether the node was extended beyond one block.
func (n *Node) IsSupernode() bool { return n.Blocks > 1 }

// Capacity returns the number of entries the node may hold.
func (n *Node) Capacity(maxEntries int) int { return max(n.Blocks, 1) * maxEntries }

// MBR returns the union of all entry boxes, or the zero MBR for an empty node.
func (n *Node) MBR() spatial.MBR {
	var m spatial.MBR
	for i := range n.Entries {
		m.Extend(n.Entries[i].MBR)
	}
	return m
}

// Count returns the number of data objects beneath the node.
func (n *Node) Count() uint64 {
	var c uint64
	for i := range n.Entries {
		c += n.Entries[i].Count
	}
	return c
}

// IndexOf returns the position of the directory entry pointing at child, or -1.
func (n *Node) IndexOf(child PageID) int {
	for i := range n.Entries {
		if n.Entries[i].Child == child {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Entries = make([]Entry, len(n.Entries))
	for i, e := range n.Entries {
		e.MBR = e.MBR.Clone()
		c.Entries[i] = e
	}
	return &c
}

// SizeBytes estimates the in-memory footprint, used for cache accounting.
func (n *Node) SizeBytes() int64 {
	const entryOverhead = 80
	size := int64(64)
	for i := range n.Entries {
		size += entryOverhead + int64(16*n.Entries[i].MBR.Dim())
	}
	return size
}
