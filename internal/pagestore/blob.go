package pagestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/internal/compress"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/resource"
)

const (
	pagePrefix = "pages/"
	allocName  = pagePrefix + "ALLOC"

	allocMagic uint32 = 0x584E4C41 // "ALNX"
)

// PageName returns the blob name of a page.
func PageName(id node.PageID) string {
	return fmt.Sprintf("%s%08x", pagePrefix, uint32(id))
}

// BlobOptions configures a Blob page store.
type BlobOptions struct {
	// Compression applied to encoded pages. Readers detect the compression
	// from the page frame, so it may change between sessions.
	Compression compress.Type
	// Resources throttles page IO. May be nil.
	Resources *resource.Controller
}

// Blob stores one object per page in a blobstore.BlobStore. Allocator state
// (next id and the free-id bitmap) is persisted by Sync.
//
// Removed pages stay in the blob store until the next Sync and their ids are
// not reused before then, so a session that ends without Sync leaves the
// pages of the last synced state intact.
type Blob struct {
	store blobstore.BlobStore
	opts  BlobOptions

	mu      sync.Mutex
	next    uint32
	free    *roaring.Bitmap
	pending *roaring.Bitmap // removed since the last Sync
	dirty   bool            // allocator state changed since the last Sync
	closed atomic.Bool

	reads  atomic.Uint64
	writes atomic.Uint64
}

var _ Store = (*Blob)(nil)

// OpenBlob opens the page store kept in bs, loading allocator state if
// present.
func OpenBlob(ctx context.Context, bs blobstore.BlobStore, opts BlobOptions) (*Blob, error) {
	b := &Blob{store: bs, opts: opts, free: roaring.New(), pending: roaring.New()}

	data, err := bs.Get(ctx, allocName)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("pagestore: load allocator: %w", err)
	}
	if len(data) < 8 || binary.LittleEndian.Uint32(data) != allocMagic {
		return nil, fmt.Errorf("pagestore: load allocator: %w", node.ErrInvalidPage)
	}
	b.next = binary.LittleEndian.Uint32(data[4:])
	if err := b.free.UnmarshalBinary(data[8:]); err != nil {
		return nil, fmt.Errorf("pagestore: load allocator: %w", err)
	}
	return b, nil
}

// Fetch implements Store.
func (b *Blob) Fetch(ctx context.Context, id node.PageID) (*node.Node, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	b.mu.Lock()
	removed := b.pending.Contains(uint32(id))
	b.mu.Unlock()
	if removed {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, id)
	}
	data, err := b.store.Get(ctx, PageName(id))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPageNotFound, id)
		}
		return nil, fmt.Errorf("pagestore: read page %d: %w", id, err)
	}
	if err := b.opts.Resources.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	b.reads.Add(1)

	raw, err := compress.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("pagestore: page %d: %w", id, err)
	}
	n, err := node.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("pagestore: page %d: %w", id, err)
	}
	if n.ID != id {
		return nil, fmt.Errorf("pagestore: page %d holds node %d: %w", id, n.ID, node.ErrInvalidPage)
	}
	return n, nil
}

// Allocate implements Store. Ids removed since the last Sync are not handed
// out.
func (b *Blob) Allocate(_ context.Context, leaf bool, level int) (*node.Node, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var id uint32
	if !b.free.IsEmpty() {
		id = b.free.Minimum()
		b.free.Remove(id)
	} else {
		if b.next == uint32(node.NoPage) {
			return nil, errors.New("pagestore: page ids exhausted")
		}
		id = b.next
		b.next++
	}
	b.dirty = true
	return node.New(node.PageID(id), leaf, level), nil
}

// Write implements Store.
func (b *Blob) Write(ctx context.Context, n *node.Node) error {
	if b.closed.Load() {
		return ErrClosed
	}
	frame, err := compress.Encode(node.Encode(n), b.opts.Compression)
	if err != nil {
		return fmt.Errorf("pagestore: encode page %d: %w", n.ID, err)
	}
	if err := b.opts.Resources.AcquireIO(ctx, len(frame)); err != nil {
		return err
	}
	if err := b.store.Put(ctx, PageName(n.ID), frame); err != nil {
		return fmt.Errorf("pagestore: write page %d: %w", n.ID, err)
	}
	b.writes.Add(1)
	return nil
}

// Remove implements Store. The page blob is deleted and its id freed on the
// next Sync.
func (b *Blob) Remove(_ context.Context, id node.PageID) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if id >= node.PageID(b.next) || b.free.Contains(uint32(id)) || b.pending.Contains(uint32(id)) {
		return fmt.Errorf("%w: %d", ErrPageNotFound, id)
	}
	b.pending.Add(uint32(id))
	b.dirty = true
	return nil
}

// Sync deletes the pages removed since the last Sync and persists the
// allocator state. Pages are durable once Write returns.
func (b *Blob) Sync(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil
	}
	for it := b.pending.Iterator(); it.HasNext(); {
		id := it.Next()
		if err := b.store.Delete(ctx, PageName(node.PageID(id))); err != nil {
			return fmt.Errorf("pagestore: remove page %d: %w", id, err)
		}
	}
	b.free.Or(b.pending)
	b.pending.Clear()

	b.free.RunOptimize()
	bm, err := b.free.ToBytes()
	if err != nil {
		return err
	}
	data := make([]byte, 8, 8+len(bm))
	binary.LittleEndian.PutUint32(data, allocMagic)
	binary.LittleEndian.PutUint32(data[4:], b.next)
	data = append(data, bm...)

	if err := b.store.Put(ctx, allocName, data); err != nil {
		return fmt.Errorf("pagestore: sync allocator: %w", err)
	}
	b.dirty = false
	return nil
}

// Close implements Store. Removals since the last Sync are dropped.
func (b *Blob) Close() error {
	b.closed.Store(true)
	return nil
}

// PageStats implements StatsReporter.
func (b *Blob) PageStats() Stats {
	b.mu.Lock()
	pages := int(b.next) - int(b.free.GetCardinality()) - int(b.pending.GetCardinality())
	b.mu.Unlock()
	return Stats{Pages: pages, Reads: b.reads.Load(), Writes: b.writes.Load()}
}
