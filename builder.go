package xtree

import (
	"context"
	"slices"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/relation"
)

// XTree creates an index builder for dim-dimensional points using the
// X-tree variant.
//
// The builder is immutable: each method returns a new builder with the
// updated configuration, so a partially configured builder may be shared.
//
// Example:
//
//	idx, err := xtree.XTree(16).
//	    Euclidean().
//	    Capacity(12, 32).
//	    MaxOverlap(0.2).
//	    Build(ctx)
func XTree(dim int) Builder {
	return Builder{dim: dim}
}

// RStar creates an index builder for dim-dimensional points using the plain
// R*-tree variant. Reopening a persisted index requires the same settings
// it was created with.
func RStar(dim int) Builder {
	return Builder{dim: dim, opts: []Option{WithVariant(VariantRStar)}}
}

// Builder is an immutable fluent builder for Index instances.
type Builder struct {
	dim  int
	opts []Option
}

func (b Builder) with(opt Option) Builder {
	b.opts = append(slices.Clip(b.opts), opt)
	return b
}

// Euclidean sets the distance to the Euclidean distance.
func (b Builder) Euclidean() Builder { return b.with(WithMetric(distance.MetricEuclidean)) }

// SquaredEuclidean sets the distance to the squared Euclidean distance.
// Rankings are identical to Euclidean; reported distances are squared.
func (b Builder) SquaredEuclidean() Builder {
	return b.with(WithMetric(distance.MetricSquaredEuclidean))
}

// Manhattan sets the distance to the L1 distance.
func (b Builder) Manhattan() Builder { return b.with(WithMetric(distance.MetricManhattan)) }

// Maximum sets the distance to the L-infinity distance.
func (b Builder) Maximum() Builder { return b.with(WithMetric(distance.MetricMaximum)) }

// Distance sets a custom distance function.
func (b Builder) Distance(d distance.Func) Builder { return b.with(WithDistance(d)) }

// Capacity sets the minimum and maximum entries per node block.
// Default: 12, 32.
func (b Builder) Capacity(minEntries, maxEntries int) Builder {
	return b.with(WithCapacity(minEntries, maxEntries))
}

// ReinsertFraction sets the forced reinsertion fraction. 0 disables it.
func (b Builder) ReinsertFraction(f float64) Builder { return b.with(WithReinsertFraction(f)) }

// MaxOverlap sets the overlap threshold for directory splits.
func (b Builder) MaxOverlap(f float64) Builder { return b.with(WithMaxOverlap(f)) }

// DataOverlap measures split overlap by the fraction of covered objects
// instead of by volume.
func (b Builder) DataOverlap() Builder { return b.with(WithOverlapMetric(OverlapData)) }

// RelativeMinFanout sets the minimum group size of overlap-minimal splits.
func (b Builder) RelativeMinFanout(f float64) Builder {
	return b.with(WithRelativeMinFanout(f))
}

// MaxSupernodeBlocks caps the size of supernodes.
func (b Builder) MaxSupernodeBlocks(n int) Builder { return b.with(WithMaxSupernodeBlocks(n)) }

// Persist stores the index in bs with the given page compression.
func (b Builder) Persist(bs blobstore.BlobStore, c Compression) Builder {
	return b.with(WithBlobStore(bs)).with(WithCompression(c))
}

// CacheSize sets the page cache budget in bytes.
func (b Builder) CacheSize(bytes int64) Builder { return b.with(WithCacheSize(bytes)) }

// Relation sets an external data relation.
func (b Builder) Relation(r relation.Relation) Builder { return b.with(WithRelation(r)) }

// Parallelism bounds the concurrency of KNNMany.
func (b Builder) Parallelism(n int) Builder { return b.with(WithParallelism(n)) }

// Logger sets the structured logger.
func (b Builder) Logger(l *Logger) Builder { return b.with(WithLogger(l)) }

// Metrics sets the metrics collector.
func (b Builder) Metrics(mc MetricsCollector) Builder { return b.with(WithMetricsCollector(mc)) }

// Options appends raw options.
func (b Builder) Options(opts ...Option) Builder {
	for _, o := range opts {
		b = b.with(o)
	}
	return b
}

// Build creates the index.
func (b Builder) Build(ctx context.Context) (*Index, error) {
	return New(ctx, b.dim, b.opts...)
}

// MustBuild creates the index, panicking on error.
func (b Builder) MustBuild(ctx context.Context) *Index {
	idx, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return idx
}
