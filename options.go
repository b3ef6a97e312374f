package xtree

import (
	"log/slog"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/codec"
	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/internal/compress"
	"github.com/hupe1980/xtree/internal/tree"
	"github.com/hupe1980/xtree/relation"
)

// Variant selects the overflow strategy of directory nodes.
type Variant = tree.Variant

const (
	// VariantXTree splits directory nodes only when the split keeps the
	// overlap below MaxOverlap and extends them into supernodes otherwise.
	VariantXTree = tree.XTree
	// VariantRStar always uses the R*-tree topological split.
	VariantRStar = tree.RStar
)

// OverlapMetric defines how the overlap of two split groups is measured.
type OverlapMetric = tree.OverlapMetric

const (
	// OverlapVolume is overlap volume / (volume 1 + volume 2).
	OverlapVolume = tree.VolumeOverlap
	// OverlapData is the fraction of objects whose entries fall into the
	// overlapping region.
	OverlapData = tree.DataOverlap
)

// Compression is the page compression of persisted indexes.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// DefaultCacheSize is the page cache budget in bytes for persisted indexes.
const DefaultCacheSize = 64 << 20

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	dist             distance.Func
	settings         tree.Settings
	settingsSet      bool
	blobStore        blobstore.BlobStore
	compression      compress.Type
	cacheSize        int64
	memoryLimit      int64
	ioLimit          int64
	relation         relation.Relation
	parallelism      int

	err error // first invalid option, reported by New and Open
}

// Option configures New and Open.
type Option func(*options)

// WithCodec configures the codec used for the manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &xtree.BasicMetricsCollector{}
//	idx, _ := xtree.New(ctx, 3, xtree.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := xtree.NewJSONLogger(slog.LevelInfo)
//	idx, _ := xtree.New(ctx, 3, xtree.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDistance sets the distance function. Its Name is persisted; reopening
// an index whose metric is not built in requires passing the same function
// again.
func WithDistance(d distance.Func) Option {
	return func(o *options) {
		o.dist = d
	}
}

// WithMetric selects a built-in distance function. Default: Euclidean, or
// the persisted metric when reopening. An unknown metric makes New and Open
// fail with *ErrInvalidConfig.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		d, err := distance.Provider(m)
		if err != nil {
			if o.err == nil {
				o.err = invalidConfig(err, "metric %v", m)
			}
			return
		}
		o.dist = d
	}
}

func withSettings(fn func(*tree.Settings)) Option {
	return func(o *options) {
		fn(&o.settings)
		o.settingsSet = true
	}
}

// WithCapacity sets the minimum and maximum number of entries per node
// block. Default: 12, 32.
func WithCapacity(minEntries, maxEntries int) Option {
	return withSettings(func(s *tree.Settings) {
		s.MinEntries, s.MaxEntries = minEntries, maxEntries
	})
}

// WithVariant selects the X-tree (default) or the plain R*-tree.
func WithVariant(v Variant) Option {
	return withSettings(func(s *tree.Settings) { s.Variant = v })
}

// WithReinsertFraction sets the fraction of entries forcibly reinserted on
// the first overflow of a level. 0 disables forced reinsertion. Default: 0.3.
func WithReinsertFraction(f float64) Option {
	return withSettings(func(s *tree.Settings) { s.ReinsertFraction = f })
}

// WithMaxOverlap sets the largest overlap a directory split may produce
// before the X-tree tries an overlap-minimal split or a supernode.
// Default: 0.2.
func WithMaxOverlap(f float64) Option {
	return withSettings(func(s *tree.Settings) { s.MaxOverlap = f })
}

// WithOverlapMetric selects how split overlap is measured. Default: volume.
func WithOverlapMetric(m OverlapMetric) Option {
	return withSettings(func(s *tree.Settings) { s.OverlapMetric = m })
}

// WithRelativeMinFanout sets the minimum group size of overlap-minimal
// splits as a fraction of the maximum capacity. Default: 0.3.
func WithRelativeMinFanout(f float64) Option {
	return withSettings(func(s *tree.Settings) { s.RelativeMinFanout = f })
}

// WithMaxSupernodeBlocks caps supernodes at this many blocks. Default: 8.
func WithMaxSupernodeBlocks(n int) Option {
	return withSettings(func(s *tree.Settings) { s.MaxSupernodeBlocks = n })
}

// WithBlobStore persists the index in bs. An index committed to bs before
// is reopened.
//
// Example:
//
//	idx, _ := xtree.New(ctx, 3, xtree.WithBlobStore(blobstore.NewLocalStore("./data")))
//	// ... insert ...
//	_ = idx.Commit(ctx)
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = bs
	}
}

// WithCompression sets the compression of newly written pages. Pages are
// self-describing, so the setting may change between sessions.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCacheSize sets the page cache budget in bytes for persisted indexes.
// 0 disables caching of clean pages. Pages changed since the last Commit are
// buffered in memory either way. Default: DefaultCacheSize.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithMemoryLimit caps the bytes the page cache may hold across all caches
// sharing the index's resource controller. 0 means unlimited. The limit
// covers clean cached pages only: pages changed since the last Commit stay
// in memory until Commit regardless of it.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles page reads and writes to the blob store to the
// given bytes per second. 0 means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithRelation supplies an external data relation used to resolve query
// objects by id. The index only reads from it. Without this option the
// index maintains its own in-memory relation from inserted points.
func WithRelation(r relation.Relation) Option {
	return func(o *options) {
		o.relation = r
	}
}

// WithParallelism bounds the number of concurrent queries run by KNNMany.
// Values < 1 mean one per query.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		settings:         tree.DefaultSettings(),
		compression:      compress.LZ4,
		cacheSize:        DefaultCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
