package xtree_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/xtree"
	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/spatial"
	"github.com/hupe1980/xtree/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_XTree(t *testing.T) {
	ctx := context.Background()
	idx, err := xtree.XTree(3).
		Euclidean().
		Capacity(4, 10).
		MaxOverlap(0.1).
		DataOverlap().
		RelativeMinFanout(0.35).
		MaxSupernodeBlocks(4).
		ReinsertFraction(0.25).
		Build(ctx)
	require.NoError(t, err)
	defer idx.Close()

	for i, p := range testutil.NewRNG(4).UniformPoints(250, 3) {
		require.NoError(t, idx.Insert(ctx, uint64(i), p))
	}
	require.NoError(t, idx.Validate(ctx))

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.MaxBlocks, 4)
}

func TestBuilder_RStarNeverCreatesSupernodes(t *testing.T) {
	ctx := context.Background()
	idx := xtree.RStar(8).Capacity(2, 5).MustBuild(ctx)
	defer idx.Close()

	for i, p := range testutil.NewRNG(8).UniformPoints(300, 8) {
		require.NoError(t, idx.Insert(ctx, uint64(i), p))
	}
	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Supernodes)
	assert.Zero(t, st.SupernodeExtensions)
}

func TestBuilder_IsImmutable(t *testing.T) {
	ctx := context.Background()
	base := xtree.XTree(2).Capacity(2, 4)
	manhattan := base.Manhattan()
	maximum := base.Maximum()

	a := manhattan.MustBuild(ctx)
	defer a.Close()
	b := maximum.MustBuild(ctx)
	defer b.Close()

	for _, idx := range []*xtree.Index{a, b} {
		require.NoError(t, idx.Insert(ctx, 1, spatial.Point{3, 4}))
	}
	resA, err := a.KNN(ctx, spatial.Point{0, 0}, 1)
	require.NoError(t, err)
	resB, err := b.KNN(ctx, spatial.Point{0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, resA[0].Distance)
	assert.Equal(t, 4.0, resB[0].Distance)
}

func TestBuilder_Persist(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	idx, err := xtree.RStar(2).Capacity(2, 6).Persist(bs, xtree.CompressionZSTD).CacheSize(0).Build(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, 7, spatial.Point{1, 2}))
	require.NoError(t, idx.Commit(ctx))
	require.NoError(t, idx.Close())

	// Reopening with different settings is rejected.
	_, err = xtree.XTree(2).Capacity(2, 6).Persist(bs, xtree.CompressionZSTD).Build(ctx)
	var ic *xtree.ErrInvalidConfig
	assert.True(t, errors.As(err, &ic))

	idx, err = xtree.RStar(2).Capacity(2, 6).Persist(bs, xtree.CompressionLZ4).Build(ctx)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, uint64(1), idx.Len())
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		xtree.XTree(0).MustBuild(context.Background())
	})
}
