package pagestore

import (
	"container/list"
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/resource"
	"golang.org/x/sync/singleflight"
)

// Cached wraps a Store with an LRU of decoded nodes bounded by capacity
// bytes. Writes are buffered as dirty pages and reach the inner store on
// Sync; dirty pages are never evicted. With capacity 0 only the dirty pages
// are held.
//
// The capacity and the resource controller bound the clean LRU only. Dirty
// pages are held until Sync whatever their size.
type Cached struct {
	inner    Store
	rc       *resource.Controller
	capacity int64

	mu        sync.Mutex
	size      int64
	items     map[node.PageID]*list.Element
	evictList *list.List
	dirty     map[node.PageID]*node.Node

	loads singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheEntry struct {
	id   node.PageID
	n    *node.Node
	size int64
}

var _ Store = (*Cached)(nil)

// NewCached creates a cache of the given capacity in bytes in front of
// inner. If rc is provided, cached bytes are reserved from it and nodes that
// do not fit the global budget are simply not cached. Dirty pages are not
// charged to rc.
func NewCached(inner Store, capacity int64, rc *resource.Controller) *Cached {
	return &Cached{
		inner:     inner,
		rc:        rc,
		capacity:  capacity,
		items:     make(map[node.PageID]*list.Element),
		evictList: list.New(),
		dirty:     make(map[node.PageID]*node.Node),
	}
}

// Fetch implements Store. Concurrent misses on the same page share one load.
func (c *Cached) Fetch(ctx context.Context, id node.PageID) (*node.Node, error) {
	c.mu.Lock()
	if n, ok := c.dirty[id]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return n, nil
	}
	if el, ok := c.items[id]; ok {
		c.evictList.MoveToFront(el)
		n := el.Value.(*cacheEntry).n
		c.mu.Unlock()
		c.hits.Add(1)
		return n, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	v, err, _ := c.loads.Do(strconv.FormatUint(uint64(id), 10), func() (any, error) {
		n, err := c.inner.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.set(n)
		c.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*node.Node), nil
}

// Allocate implements Store.
func (c *Cached) Allocate(ctx context.Context, leaf bool, level int) (*node.Node, error) {
	return c.inner.Allocate(ctx, leaf, level)
}

// Write implements Store. The page is buffered until Sync.
func (c *Cached) Write(_ context.Context, n *node.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty[n.ID] = n
	c.set(n)
	return nil
}

// Remove implements Store. A buffered write of the page is discarded.
func (c *Cached) Remove(ctx context.Context, id node.PageID) error {
	c.mu.Lock()
	delete(c.dirty, id)
	if el, ok := c.items[id]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()

	return c.inner.Remove(ctx, id)
}

// Sync flushes dirty pages in id order, then syncs the inner store.
func (c *Cached) Sync(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]node.PageID, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		c.mu.Lock()
		n, ok := c.dirty[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		if err := c.inner.Write(ctx, n); err != nil {
			return err
		}
		c.mu.Lock()
		if c.dirty[id] == n {
			delete(c.dirty, id)
		}
		c.mu.Unlock()
	}
	return c.inner.Sync(ctx)
}

// Close drops the cache and closes the inner store. Dirty pages that were
// not synced are lost.
func (c *Cached) Close() error {
	c.mu.Lock()
	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
	clear(c.dirty)
	c.mu.Unlock()
	return c.inner.Close()
}

// Dirty returns the number of buffered pages.
func (c *Cached) Dirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Size returns the current size of the cache in bytes.
func (c *Cached) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// PageStats implements StatsReporter, adding cache counters to the inner
// store's counters.
func (c *Cached) PageStats() Stats {
	var s Stats
	if r, ok := c.inner.(StatsReporter); ok {
		s = r.PageStats()
	}
	s.CacheHits = c.hits.Load()
	s.CacheMisses = c.misses.Load()
	return s
}

// set caches n, replacing an older entry. Caller holds mu.
func (c *Cached) set(n *node.Node) {
	size := n.SizeBytes()
	if el, ok := c.items[n.ID]; ok {
		c.removeElement(el)
	}
	if size > c.capacity {
		return
	}

	// Evict to make space in local capacity first, releasing memory to the
	// controller before we try to acquire it back.
	for c.size+size > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
	}
	if !c.rc.TryAcquireMemory(size) {
		return
	}

	c.items[n.ID] = c.evictList.PushFront(&cacheEntry{id: n.ID, n: n, size: size})
	c.size += size
}

func (c *Cached) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	e := el.Value.(*cacheEntry)
	delete(c.items, e.id)
	c.size -= e.size
	c.rc.ReleaseMemory(e.size)
}
