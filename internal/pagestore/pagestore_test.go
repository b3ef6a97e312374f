package pagestore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/internal/compress"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/resource"
	"github.com/hupe1980/xtree/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafWith(n *node.Node, ids ...uint64) *node.Node {
	for _, id := range ids {
		n.Entries = append(n.Entries, node.LeafEntry(id, spatial.Point{float64(id), float64(id) * 2}))
	}
	return n
}

func TestMemory(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	a, err := m.Allocate(ctx, true, 0)
	require.NoError(t, err)
	b, err := m.Allocate(ctx, false, 1)
	require.NoError(t, err)
	assert.Equal(t, node.PageID(0), a.ID)
	assert.Equal(t, node.PageID(1), b.ID)

	_, err = m.Fetch(ctx, a.ID)
	assert.ErrorIs(t, err, ErrPageNotFound, "allocated but unwritten")

	require.NoError(t, m.Write(ctx, leafWith(a, 1, 2)))
	require.NoError(t, m.Write(ctx, b))

	got, err := m.Fetch(ctx, a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 2, m.PageStats().Pages)

	require.NoError(t, m.Remove(ctx, a.ID))
	assert.ErrorIs(t, m.Remove(ctx, a.ID), ErrPageNotFound)
	_, err = m.Fetch(ctx, a.ID)
	assert.ErrorIs(t, err, ErrPageNotFound)

	c, err := m.Allocate(ctx, true, 0)
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID, "freed ids are reused")

	require.NoError(t, m.Close())
	_, err = m.Fetch(ctx, b.ID)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBlob_RoundTripAndReopen(t *testing.T) {
	for _, typ := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			ctx := t.Context()
			bs := blobstore.NewMemoryStore()

			s, err := OpenBlob(ctx, bs, BlobOptions{Compression: typ})
			require.NoError(t, err)

			var ids []node.PageID
			for i := range 4 {
				n, err := s.Allocate(ctx, true, 0)
				require.NoError(t, err)
				require.NoError(t, s.Write(ctx, leafWith(n, uint64(i), uint64(i+10))))
				ids = append(ids, n.ID)
			}
			require.NoError(t, s.Remove(ctx, ids[1]))
			require.NoError(t, s.Sync(ctx))
			assert.Equal(t, 3, s.PageStats().Pages)

			reopened, err := OpenBlob(ctx, bs, BlobOptions{})
			require.NoError(t, err)

			got, err := reopened.Fetch(ctx, ids[2])
			require.NoError(t, err)
			assert.Equal(t, []uint64{2, 12}, []uint64{got.Entries[0].ObjectID, got.Entries[1].ObjectID})

			_, err = reopened.Fetch(ctx, ids[1])
			assert.ErrorIs(t, err, ErrPageNotFound)

			n, err := reopened.Allocate(ctx, true, 0)
			require.NoError(t, err)
			assert.Equal(t, ids[1], n.ID, "free bitmap survives reopen")

			n, err = reopened.Allocate(ctx, true, 0)
			require.NoError(t, err)
			assert.Equal(t, node.PageID(4), n.ID)
		})
	}
}

func TestBlob_RemoveDeferredUntilSync(t *testing.T) {
	ctx := t.Context()
	bs := blobstore.NewMemoryStore()
	s, err := OpenBlob(ctx, bs, BlobOptions{})
	require.NoError(t, err)

	a, err := s.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, leafWith(a, 1)))
	require.NoError(t, s.Sync(ctx))

	require.NoError(t, s.Remove(ctx, a.ID))
	assert.ErrorIs(t, s.Remove(ctx, a.ID), ErrPageNotFound)
	_, err = s.Fetch(ctx, a.ID)
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, err = bs.Get(ctx, PageName(a.ID))
	assert.NoError(t, err, "blob kept until Sync")

	b, err := s.Allocate(ctx, true, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID, "removed id is not reused before Sync")

	// A session ending without Sync leaves the synced page readable.
	other, err := OpenBlob(ctx, bs, BlobOptions{})
	require.NoError(t, err)
	got, err := other.Fetch(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Entries[0].ObjectID)

	require.NoError(t, s.Sync(ctx))
	_, err = bs.Get(ctx, PageName(a.ID))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	c, err := s.Allocate(ctx, true, 0)
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID, "freed after Sync")
}

func TestBlob_CorruptAllocator(t *testing.T) {
	ctx := t.Context()
	bs := blobstore.NewMemoryStore()
	require.NoError(t, bs.Put(ctx, allocName, []byte{1, 2, 3}))

	_, err := OpenBlob(ctx, bs, BlobOptions{})
	assert.ErrorIs(t, err, node.ErrInvalidPage)
}

func TestBlob_PageMismatch(t *testing.T) {
	ctx := t.Context()
	bs := blobstore.NewMemoryStore()
	s, err := OpenBlob(ctx, bs, BlobOptions{})
	require.NoError(t, err)

	n, err := s.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, n))

	data, err := bs.Get(ctx, PageName(n.ID))
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, PageName(7), data))

	_, err = s.Fetch(ctx, 7)
	assert.ErrorIs(t, err, node.ErrInvalidPage)
}

// countingStore counts inner fetches.
type countingStore struct {
	Store
	fetches atomic.Int64
	gate    chan struct{}
}

func (c *countingStore) Fetch(ctx context.Context, id node.PageID) (*node.Node, error) {
	c.fetches.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.Store.Fetch(ctx, id)
}

func TestCached_HitsAndWriteBack(t *testing.T) {
	ctx := t.Context()
	bs := blobstore.NewMemoryStore()
	blob, err := OpenBlob(ctx, bs, BlobOptions{})
	require.NoError(t, err)
	c := NewCached(blob, 1<<20, nil)

	n, err := c.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, leafWith(n, 1)))
	assert.Equal(t, 1, c.Dirty())
	assert.Zero(t, bs.Len(), "writes are buffered")

	got, err := c.Fetch(ctx, n.ID)
	require.NoError(t, err)
	assert.Same(t, n, got)

	require.NoError(t, c.Sync(ctx))
	assert.Zero(t, c.Dirty())
	assert.Equal(t, 2, bs.Len(), "page and allocator state")

	// A fresh cache over the same blobs misses once, then hits.
	c2 := NewCached(blob, 1<<20, nil)
	_, err = c2.Fetch(ctx, n.ID)
	require.NoError(t, err)
	_, err = c2.Fetch(ctx, n.ID)
	require.NoError(t, err)

	st := c2.PageStats()
	assert.Equal(t, uint64(1), st.CacheMisses)
	assert.Equal(t, uint64(1), st.CacheHits)
	assert.Equal(t, 1, st.Pages)
}

func TestCached_Remove(t *testing.T) {
	ctx := t.Context()
	c := NewCached(NewMemory(), 1<<20, nil)

	n, err := c.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, n))
	require.NoError(t, c.Sync(ctx))
	require.NoError(t, c.Remove(ctx, n.ID))

	_, err = c.Fetch(ctx, n.ID)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestCached_EvictionAndMemoryAccounting(t *testing.T) {
	ctx := t.Context()
	mem := NewMemory()
	rc := resource.NewController(resource.Config{})

	var nodes []*node.Node
	for i := range 10 {
		n, err := mem.Allocate(ctx, true, 0)
		require.NoError(t, err)
		require.NoError(t, mem.Write(ctx, leafWith(n, uint64(i))))
		nodes = append(nodes, n)
	}
	perNode := nodes[0].SizeBytes()

	c := NewCached(mem, 3*perNode, rc)
	for _, n := range nodes {
		_, err := c.Fetch(ctx, n.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3*perNode, c.Size())
	assert.Equal(t, 3*perNode, rc.MemoryUsage())

	// The most recently used pages are resident.
	_, err := c.Fetch(ctx, nodes[9].ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.PageStats().CacheHits)

	require.NoError(t, c.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestCached_MemoryLimitRefusesCaching(t *testing.T) {
	ctx := t.Context()
	mem := NewMemory()
	n, err := mem.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Write(ctx, leafWith(n, 1, 2, 3)))

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})
	c := NewCached(mem, 1<<20, rc)

	_, err = c.Fetch(ctx, n.ID)
	require.NoError(t, err)
	assert.Zero(t, c.Size())
}

func TestCached_ConcurrentMissesShareLoad(t *testing.T) {
	ctx := t.Context()
	mem := NewMemory()
	n, err := mem.Allocate(ctx, true, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Write(ctx, n))

	inner := &countingStore{Store: mem, gate: make(chan struct{})}
	c := NewCached(inner, 1<<20, nil)

	var wg sync.WaitGroup
	var started sync.WaitGroup
	for range 8 {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := c.Fetch(ctx, n.ID)
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	close(inner.gate)
	wg.Wait()

	assert.LessOrEqual(t, inner.fetches.Load(), int64(8))
	assert.GreaterOrEqual(t, inner.fetches.Load(), int64(1))
}
