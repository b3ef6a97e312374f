package xtree

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/xtree/internal/queue"
	"github.com/hupe1980/xtree/spatial"
	"golang.org/x/sync/errgroup"
)

func toNeighbors(items []queue.Item) []Neighbor {
	out := make([]Neighbor, len(items))
	for i, it := range items {
		out[i] = Neighbor{ID: it.ID, Distance: it.Distance}
	}
	return out
}

// KNN returns the k objects nearest to q by ascending distance.
func (idx *Index) KNN(ctx context.Context, q spatial.Point, k int) (res []Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordSearch(k, time.Since(start), err)
		idx.logger.LogSearch(ctx, k, len(res), err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	items, err := idx.tree.KNN(ctx, q, k)
	if err != nil {
		return nil, translateError(err)
	}
	return toNeighbors(items), nil
}

// KNNByID returns the k nearest neighbors of the indexed object id. The
// object itself is part of the result.
func (idx *Index) KNNByID(ctx context.Context, id uint64, k int) (res []Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordSearch(k, time.Since(start), err)
		idx.logger.LogSearch(ctx, k, len(res), err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	q, err := idx.rel.Resolve(id)
	if err != nil {
		return nil, fmt.Errorf("id %d: %w", id, translateError(err))
	}
	items, err := idx.tree.KNN(ctx, q, k)
	if err != nil {
		return nil, translateError(err)
	}
	return toNeighbors(items), nil
}

// KNNBatch answers the k-nearest-neighbor query of every object in ids with
// one shared traversal. Query objects are resolved through the relation.
func (idx *Index) KNNBatch(ctx context.Context, ids []uint64, k int) (res map[uint64][]Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordBatchSearch(len(ids), k, time.Since(start), err)
		idx.logger.LogBatchSearch(ctx, len(ids), k, err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	queries := make([]spatial.Point, len(ids))
	for i, id := range ids {
		if queries[i], err = idx.rel.Resolve(id); err != nil {
			return nil, fmt.Errorf("id %d: %w", id, translateError(err))
		}
	}
	lists, err := idx.tree.KNNBatch(ctx, queries, k)
	if err != nil {
		return nil, translateError(err)
	}
	res = make(map[uint64][]Neighbor, len(ids))
	for i, id := range ids {
		res[id] = toNeighbors(lists[i])
	}
	return res, nil
}

// KNNMany runs an independent KNN query for each point in parallel, bounded
// by WithParallelism. Result i belongs to queries[i].
func (idx *Index) KNNMany(ctx context.Context, queries []spatial.Point, k int) (res [][]Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordBatchSearch(len(queries), k, time.Since(start), err)
		idx.logger.LogBatchSearch(ctx, len(queries), k, err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	res = make([][]Neighbor, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if idx.parallelism > 0 {
		g.SetLimit(idx.parallelism)
	}
	for i, q := range queries {
		g.Go(func() error {
			items, err := idx.tree.KNN(gctx, q, k)
			if err != nil {
				return err
			}
			res[i] = toNeighbors(items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translateError(err)
	}
	return res, nil
}

// Range returns every object within radius of q by ascending distance.
func (idx *Index) Range(ctx context.Context, q spatial.Point, radius float64) (res []Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordSearch(0, time.Since(start), err)
		idx.logger.LogSearch(ctx, 0, len(res), err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	items, err := idx.tree.Range(ctx, q, radius)
	if err != nil {
		return nil, translateError(err)
	}
	return toNeighbors(items), nil
}

// Search calls fn for every object whose point lies inside box, until fn
// returns false. fn must not modify p or call back into the index's write
// methods.
func (idx *Index) Search(ctx context.Context, box spatial.MBR, fn func(id uint64, p spatial.Point) bool) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return ErrClosed
	}
	return translateError(idx.tree.Search(ctx, box, fn))
}

// Query creates a fluent query builder for the point q.
//
// Example:
//
//	results, err := idx.Query(q).
//	    KNN(10).
//	    Within(2.5).
//	    Execute(ctx)
//
//	// Or with streaming:
//	for n, err := range idx.Query(q).Within(1).Stream(ctx) {
//	    if err != nil { break }
//	    process(n)
//	}
func (idx *Index) Query(q spatial.Point) *QueryBuilder {
	return &QueryBuilder{
		idx:    idx,
		q:      q,
		k:      10, // Default k
		radius: -1,
	}
}

// QueryBuilder is a fluent builder for point queries.
type QueryBuilder struct {
	idx    *Index
	q      spatial.Point
	k      int
	kSet   bool
	radius float64
}

// KNN sets the number of nearest neighbors to return.
func (qb *QueryBuilder) KNN(k int) *QueryBuilder {
	qb.k, qb.kSet = k, true
	return qb
}

// Within restricts results to distance <= radius. Without KNN, all objects
// within the radius are returned.
func (qb *QueryBuilder) Within(radius float64) *QueryBuilder {
	qb.radius = radius
	return qb
}

// Execute runs the query.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]Neighbor, error) {
	if qb.radius < 0 {
		return qb.idx.KNN(ctx, qb.q, qb.k)
	}
	if !qb.kSet {
		return qb.idx.Range(ctx, qb.q, qb.radius)
	}
	res, err := qb.idx.KNN(ctx, qb.q, qb.k)
	if err != nil {
		return nil, err
	}
	for i, n := range res {
		if n.Distance > qb.radius {
			return res[:i], nil
		}
	}
	return res, nil
}

// Stream runs the query and yields its results in ascending distance.
// Breaking out of the loop stops the iteration.
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[Neighbor, error] {
	return func(yield func(Neighbor, error) bool) {
		res, err := qb.Execute(ctx)
		if err != nil {
			yield(Neighbor{}, err)
			return
		}
		for _, n := range res {
			if !yield(n, nil) {
				return
			}
		}
	}
}
