package xtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/codec"
	"github.com/hupe1980/xtree/internal/compress"
	"github.com/hupe1980/xtree/internal/manifest"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/pagestore"
	"github.com/hupe1980/xtree/internal/resource"
	"github.com/hupe1980/xtree/internal/tree"
	"github.com/hupe1980/xtree/relation"
	"github.com/hupe1980/xtree/spatial"
)

// Neighbor is a query result.
type Neighbor struct {
	ID       uint64
	Distance float64
}

// Index is a spatial index over d-dimensional points.
//
// Index is safe for concurrent use: writes are serialized, queries run in
// parallel with each other.
type Index struct {
	mu sync.RWMutex

	tree      *tree.Tree
	store     pagestore.Store
	blobs     blobstore.BlobStore // nil for in-memory indexes
	lock      io.Closer
	resources *resource.Controller

	rel   relation.Relation
	owned *relation.Memory // nil when the relation is external

	dim         int
	compression compress.Type
	codec       codec.Codec
	metrics     MetricsCollector
	logger      *Logger
	parallelism int
	closed      bool
}

// New creates an index over dim-dimensional points.
//
// With WithBlobStore, an index previously committed to the store is
// reopened; its dimension, metric and (if given) settings must match.
func New(ctx context.Context, dim int, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	if o.err != nil {
		return nil, o.err
	}
	if dim < 1 {
		return nil, invalidConfig(nil, "dimension %d < 1", dim)
	}

	var m *manifest.Manifest
	if o.blobStore != nil {
		loaded, err := manifest.Load(ctx, o.blobStore)
		switch {
		case errors.Is(err, manifest.ErrNotFound):
		case err != nil:
			return nil, translateError(err)
		default:
			if err := adoptManifest(loaded, dim, &o); err != nil {
				return nil, err
			}
			m = loaded
		}
	}
	return open(ctx, dim, o, m)
}

// Open reopens the index committed to bs, adopting its persisted
// configuration. Settings or a distance passed as options must match it.
func Open(ctx context.Context, bs blobstore.BlobStore, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	if o.err != nil {
		return nil, o.err
	}
	o.blobStore = bs

	m, err := manifest.Load(ctx, bs)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, translateError(err)
	}
	if err := adoptManifest(m, m.Dimension, &o); err != nil {
		return nil, err
	}
	return open(ctx, m.Dimension, o, m)
}

func open(ctx context.Context, dim int, o options, m *manifest.Manifest) (*Index, error) {
	if err := o.settings.Validate(); err != nil {
		return nil, translateError(err)
	}

	idx := &Index{
		blobs:       o.blobStore,
		dim:         dim,
		compression: o.compression,
		codec:       o.codec,
		metrics:     o.metricsCollector,
		logger:      o.logger.WithDimension(dim),
		parallelism: o.parallelism,
		resources: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}

	if err := idx.openStore(ctx, o); err != nil {
		return nil, err
	}

	treeOpts := []tree.Option{
		tree.WithLogger(idx.logger.Logger),
		tree.WithDistance(o.dist),
		tree.WithSettings(o.settings),
	}
	var err error
	if m != nil {
		st := tree.State{Root: node.PageID(m.Root), Height: m.Height, Count: m.Count}
		idx.tree, err = tree.Open(ctx, idx.store, dim, st, treeOpts...)
	} else {
		idx.tree, err = tree.New(ctx, idx.store, dim, treeOpts...)
	}
	if err != nil {
		_ = idx.release()
		return nil, translateError(err)
	}

	if o.relation != nil {
		idx.rel = o.relation
	} else {
		idx.owned = relation.NewMemory()
		idx.rel = idx.owned
		if m != nil {
			err := idx.tree.Scan(ctx, func(id uint64, p spatial.Point) bool {
				idx.owned.Put(id, p)
				return true
			})
			if err != nil {
				_ = idx.release()
				return nil, translateError(err)
			}
		}
	}

	idx.logger.LogOpen(ctx, m != nil, idx.tree.Len())
	return idx, nil
}

func (idx *Index) openStore(ctx context.Context, o options) error {
	if o.blobStore == nil {
		idx.store = pagestore.NewMemory()
		return nil
	}

	if l, ok := o.blobStore.(blobstore.Locker); ok {
		closer, err := l.Lock()
		if err != nil {
			return err
		}
		idx.lock = closer
	}

	blob, err := pagestore.OpenBlob(ctx, o.blobStore, pagestore.BlobOptions{
		Compression: o.compression,
		Resources:   idx.resources,
	})
	if err != nil {
		_ = idx.release()
		return translateError(err)
	}
	// Writes stay buffered until Commit even without a page cache, so a
	// session closed without Commit leaves the committed pages untouched.
	idx.store = pagestore.NewCached(blob, max(o.cacheSize, 0), idx.resources)
	return nil
}

// Insert indexes point p under id. The point is copied.
func (idx *Index) Insert(ctx context.Context, id uint64, p spatial.Point) (err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordInsert(time.Since(start), err)
		idx.logger.LogInsert(ctx, id, err)
	}()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	if idx.owned != nil {
		if _, err := idx.owned.Resolve(id); err == nil {
			return fmt.Errorf("%w: id %d", ErrAlreadyExists, id)
		}
	}
	if err := idx.tree.Insert(ctx, id, p); err != nil {
		return translateError(err)
	}
	if idx.owned != nil {
		idx.owned.Put(id, p)
	}
	return nil
}

// Delete removes the object id. It reports false when id is not indexed.
func (idx *Index) Delete(ctx context.Context, id uint64) (found bool, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordDelete(time.Since(start), err)
		idx.logger.LogDelete(ctx, id, found, err)
	}()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return false, ErrClosed
	}
	p, err := idx.rel.Resolve(id)
	if errors.Is(err, relation.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, translateError(err)
	}
	found, err = idx.tree.Delete(ctx, id, p)
	if err != nil {
		return false, translateError(err)
	}
	if found && idx.owned != nil {
		idx.owned.Delete(id)
	}
	return found, nil
}

// Len returns the number of indexed objects.
func (idx *Index) Len() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Dimension returns the dimensionality of the indexed points.
func (idx *Index) Dimension() int { return idx.dim }

// Validate checks the structural invariants of the whole tree. Violations
// are reported as ErrCorrupt.
func (idx *Index) Validate(ctx context.Context) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return ErrClosed
	}
	return translateError(idx.tree.Validate(ctx))
}

// Stats describes the index.
type Stats struct {
	Objects        uint64
	Height         int
	Nodes          int
	LeafNodes      int
	DirectoryNodes int
	Supernodes     int
	MaxBlocks      int
	LeafFill       float64

	DistanceCalcs        uint64
	Splits               uint64
	OverlapMinimalSplits uint64
	SupernodeExtensions  uint64
	Reinsertions         uint64

	PageReads   uint64
	PageWrites  uint64
	CacheHits   uint64
	CacheMisses uint64
	CacheBytes  int64
}

// Stats walks the tree and collects its statistics.
func (idx *Index) Stats(ctx context.Context) (Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return Stats{}, ErrClosed
	}

	ts, err := idx.tree.Stats(ctx)
	if err != nil {
		return Stats{}, translateError(err)
	}
	st := Stats{
		Objects:              ts.Objects,
		Height:               ts.Height,
		Nodes:                ts.Nodes,
		LeafNodes:            ts.LeafNodes,
		DirectoryNodes:       ts.DirectoryNodes,
		Supernodes:           ts.Supernodes,
		MaxBlocks:            ts.MaxBlocks,
		LeafFill:             ts.LeafFill,
		DistanceCalcs:        ts.DistanceCalcs,
		Splits:               ts.Splits,
		OverlapMinimalSplits: ts.OverlapMinimalSplits,
		SupernodeExtensions:  ts.SupernodeExtensions,
		Reinsertions:         ts.Reinsertions,
		CacheBytes:           idx.resources.MemoryUsage(),
	}
	if r, ok := idx.store.(pagestore.StatsReporter); ok {
		ps := r.PageStats()
		st.PageReads, st.PageWrites = ps.Reads, ps.Writes
		st.CacheHits, st.CacheMisses = ps.CacheHits, ps.CacheMisses
	}
	return st, nil
}
