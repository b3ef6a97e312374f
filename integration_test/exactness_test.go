package xtree_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/xtree"
	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/testutil"
	"github.com/stretchr/testify/require"
)

func toResults(ns []xtree.Neighbor) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(ns))
	for i, n := range ns {
		out[i] = testutil.SearchResult{ID: n.ID, Distance: n.Distance}
	}
	return out
}

// KNN is exact: every configuration must reach recall 1.0 against brute
// force, including supernode-heavy trees in higher dimensions.
func TestKNN_Is100PercentRecall(t *testing.T) {
	t.Parallel()

	const (
		size = 3000
		k    = 10
	)

	configs := map[string][]xtree.Option{
		"xtree":         nil,
		"rstar":         {xtree.WithVariant(xtree.VariantRStar)},
		"data-overlap":  {xtree.WithOverlapMetric(xtree.OverlapData)},
		"tight-overlap": {xtree.WithMaxOverlap(0.01), xtree.WithMaxSupernodeBlocks(16)},
		"no-reinsert":   {xtree.WithReinsertFraction(0)},
	}

	for _, dim := range []int{2, 8, 16} {
		for name, opts := range configs {
			t.Run(fmt.Sprintf("%s/dim=%d", name, dim), func(t *testing.T) {
				t.Parallel()
				ctx := context.Background()
				rng := testutil.NewRNG(int64(42 + dim))
				points := rng.ClusteredPoints(size, dim, 12, 0.08)

				idx, err := xtree.New(ctx, dim, append([]xtree.Option{xtree.WithCapacity(6, 16)}, opts...)...)
				require.NoError(t, err)
				t.Cleanup(func() { _ = idx.Close() })

				for i, p := range points {
					require.NoError(t, idx.Insert(ctx, uint64(i), p))
				}
				require.NoError(t, idx.Validate(ctx))

				for iter, q := range rng.UniformPoints(25, dim) {
					res, err := idx.KNN(ctx, q, k)
					require.NoError(t, err)
					truth := testutil.ExactKNN(q, points, k, distance.Euclidean{})
					require.Equal(t, 1.0, testutil.ComputeRecall(truth, toResults(res)), "iter=%d", iter)
				}
			})
		}
	}
}

// Once committed, a persisted index served through a tiny cache evicts and
// reloads pages constantly; results must match the in-memory index.
func TestKNN_PersistedMatchesInMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rng := testutil.NewRNG(3)
	points := rng.UniformPoints(2000, 4)

	mem, err := xtree.New(ctx, 4, xtree.WithCapacity(4, 12))
	require.NoError(t, err)
	defer mem.Close()

	persisted, err := xtree.New(ctx, 4,
		xtree.WithCapacity(4, 12),
		xtree.WithBlobStore(blobstore.NewLocalStore(t.TempDir())),
		xtree.WithCacheSize(8<<10),
	)
	require.NoError(t, err)
	defer persisted.Close()

	for i, p := range points {
		require.NoError(t, mem.Insert(ctx, uint64(i), p))
		require.NoError(t, persisted.Insert(ctx, uint64(i), p))
	}
	for i := 0; i < 500; i += 3 {
		_, err := mem.Delete(ctx, uint64(i))
		require.NoError(t, err)
		_, err = persisted.Delete(ctx, uint64(i))
		require.NoError(t, err)
	}
	require.NoError(t, persisted.Commit(ctx))
	require.NoError(t, persisted.Validate(ctx))

	for _, q := range rng.UniformPoints(20, 4) {
		want, err := mem.KNN(ctx, q, 25)
		require.NoError(t, err)
		got, err := persisted.KNN(ctx, q, 25)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	st, err := persisted.Stats(ctx)
	require.NoError(t, err)
	require.Positive(t, st.CacheMisses)
}
