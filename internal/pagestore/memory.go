package pagestore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/xtree/internal/node"
)

// Memory is an in-process page arena. Fetch returns the stored node itself,
// so callers own the write-back discipline just like with persistent stores.
type Memory struct {
	mu     sync.RWMutex
	pages  []*node.Node
	free   *roaring.Bitmap // ids below len(pages) available for reuse
	live   int
	closed bool

	reads  atomic.Uint64
	writes atomic.Uint64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty arena.
func NewMemory() *Memory {
	return &Memory{free: roaring.New()}
}

// Fetch implements Store.
func (m *Memory) Fetch(_ context.Context, id node.PageID) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if int(id) >= len(m.pages) || m.pages[id] == nil {
		return nil, ErrPageNotFound
	}
	m.reads.Add(1)
	return m.pages[id], nil
}

// Allocate implements Store. Freed ids are reused lowest first.
func (m *Memory) Allocate(_ context.Context, leaf bool, level int) (*node.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	var id node.PageID
	if !m.free.IsEmpty() {
		id = node.PageID(m.free.Minimum())
		m.free.Remove(uint32(id))
	} else {
		id = node.PageID(len(m.pages))
		m.pages = append(m.pages, nil)
	}
	return node.New(id, leaf, level), nil
}

// Write implements Store.
func (m *Memory) Write(_ context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if int(n.ID) >= len(m.pages) || m.free.Contains(uint32(n.ID)) {
		return ErrPageNotFound
	}
	if m.pages[n.ID] == nil {
		m.live++
	}
	m.pages[n.ID] = n
	m.writes.Add(1)
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, id node.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if int(id) >= len(m.pages) || m.free.Contains(uint32(id)) {
		return ErrPageNotFound
	}
	if m.pages[id] != nil {
		m.live--
	}
	m.pages[id] = nil
	m.free.Add(uint32(id))
	return nil
}

// Sync is a no-op.
func (m *Memory) Sync(context.Context) error { return nil }

// Close drops all pages.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pages = nil
	return nil
}

// PageStats implements StatsReporter.
func (m *Memory) PageStats() Stats {
	m.mu.RLock()
	live := m.live
	m.mu.RUnlock()
	return Stats{Pages: live, Reads: m.reads.Load(), Writes: m.writes.Load()}
}
