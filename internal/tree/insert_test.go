package tree

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/pagestore"
	"github.com/hupe1980/xtree/spatial"
	"github.com/hupe1980/xtree/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variants() map[string]Settings {
	base := DefaultSettings()
	base.MinEntries = 3
	base.MaxEntries = 8

	rstar := base
	rstar.Variant = RStar

	data := base
	data.OverlapMetric = DataOverlap

	noReinsert := base
	noReinsert.ReinsertFraction = 0

	tight := base
	tight.MaxOverlap = 0.01
	tight.MaxSupernodeBlocks = 3

	return map[string]Settings{
		"xtree":       base,
		"rstar":       rstar,
		"data":        data,
		"no-reinsert": noReinsert,
		"tight":       tight,
	}
}

func TestInsert_ValidAfterEveryInsert(t *testing.T) {
	ctx := context.Background()
	for name, s := range variants() {
		t.Run(name, func(t *testing.T) {
			tr := newTestTree(t, 3, WithSettings(s))
			pts := testutil.NewRNG(11).ClusteredPoints(400, 3, 6, 0.05)
			for i, p := range pts {
				require.NoError(t, tr.Insert(ctx, uint64(i), p))
				require.NoError(t, tr.Validate(ctx), "after insert %d", i)
			}
			assert.Equal(t, uint64(len(pts)), tr.Len())
		})
	}
}

func TestInsert_GridDuplicates(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t, 2, WithSettings(smallSettings()))

	pts := testutil.GridPoints(6, 2)
	pts = append(pts, pts...)
	insertAll(t, tr, pts)
	require.NoError(t, tr.Validate(ctx))

	res, err := tr.KNN(ctx, spatial.Point{2, 3}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0.0, res[0].Distance)
	assert.Equal(t, 0.0, res[1].Distance)
}

func TestInsert_ReinsertionAndSplitCounters(t *testing.T) {
	ctx := context.Background()
	for name, frac := range map[string]float64{"reinsert": 0.3, "off": 0} {
		t.Run(name, func(t *testing.T) {
			s := variants()["xtree"]
			s.ReinsertFraction = frac
			tr := newTestTree(t, 2, WithSettings(s))
			insertAll(t, tr, testutil.NewRNG(3).UniformPoints(500, 2))

			st, err := tr.Stats(ctx)
			require.NoError(t, err)
			assert.Positive(t, st.Splits)
			assert.Greater(t, st.Height, 1)
			assert.Equal(t, uint64(500), st.Objects)
			if frac > 0 {
				assert.Positive(t, st.Reinsertions)
			} else {
				assert.Zero(t, st.Reinsertions)
			}
		})
	}
}

func TestInsert_OverlapBound(t *testing.T) {
	ctx := context.Background()
	s := variants()["xtree"]
	s.MaxOverlap = 0.1

	var decisions []SplitDecision
	tr := newTestTree(t, 4, WithSettings(s))
	tr.onSplit = func(level int, d SplitDecision) {
		if level > 0 {
			decisions = append(decisions, d)
		}
	}
	insertAll(t, tr, testutil.NewRNG(5).ClusteredPoints(1500, 4, 10, 0.1))
	require.NoError(t, tr.Validate(ctx))
	require.NotEmpty(t, decisions)

	for _, d := range decisions {
		switch {
		case d.Kind == Supernode:
			assert.Greater(t, d.Overlap, s.MaxOverlap)
			assert.Empty(t, d.Left)
		case d.Forced:
			assert.Equal(t, StandardSplit, d.Kind)
		default:
			assert.LessOrEqual(t, d.Overlap, s.MaxOverlap, "%s split", d.Kind)
		}
	}
}

func TestChooseSubtree(t *testing.T) {
	n := node.New(1, false, 1)
	n.Entries = []node.Entry{
		{MBR: spatial.NewMBR([]float64{0, 0}, []float64{10, 10}), Child: 2},
		{MBR: spatial.NewMBR([]float64{0, 0}, []float64{2, 2}), Child: 3},
		{MBR: spatial.NewMBR([]float64{0, 0}, []float64{2, 2}), Child: 4},
		{MBR: spatial.NewMBR([]float64{20, 20}, []float64{21, 21}), Child: 5},
	}

	// Contained in 0, 1 and 2 without enlargement: smallest volume, lowest index.
	assert.Equal(t, 1, chooseSubtree(n, spatial.PointMBR(spatial.Point{1, 1})))
	// Only 0 contains it.
	assert.Equal(t, 0, chooseSubtree(n, spatial.PointMBR(spatial.Point{5, 5})))
	assert.Equal(t, 3, chooseSubtree(n, spatial.PointMBR(spatial.Point{21, 22})))
	assert.Equal(t, -1, chooseSubtree(node.New(9, false, 1), spatial.PointMBR(spatial.Point{0, 0})))
}

func TestPickReinsert(t *testing.T) {
	tr := newTestTree(t, 1, WithSettings(Settings{
		MinEntries: 2, MaxEntries: 8, Variant: XTree, RelativeMinFanout: 0.3,
		ReinsertFraction: 0.4, MaxOverlap: 0.2, MaxSupernodeBlocks: 2,
	}))

	n := node.New(1, true, 0)
	for i, x := range []float64{0, 10, 4, 5, 6, 1, 9, 5, 5} {
		n.Entries = append(n.Entries, node.LeafEntry(uint64(i), spatial.Point{x}))
	}

	removed := tr.pickReinsert(n)
	// floor(0.4*9) = 3 farthest from 5: 0, 10, then 1 or 9 (first seen wins).
	require.Len(t, removed, 3)
	assert.Equal(t, 6, n.Len())
	var ids []uint64
	for _, e := range removed {
		ids = append(ids, e.ObjectID)
	}
	assert.Equal(t, []uint64{5, 1, 0}, ids)
	for _, e := range n.Entries {
		assert.NotContains(t, ids, e.ObjectID)
	}
}

func TestPickReinsert_KeepsMinimum(t *testing.T) {
	s := smallSettings()
	s.ReinsertFraction = 0.9
	tr := newTestTree(t, 1, WithSettings(s))

	n := node.New(1, true, 0)
	for i := range 5 {
		n.Entries = append(n.Entries, node.LeafEntry(uint64(i), spatial.Point{float64(i)}))
	}
	removed := tr.pickReinsert(n)
	assert.Len(t, removed, 3)
	assert.Equal(t, s.MinEntries, n.Len())
}

func TestInsert_RootNeverReinserts(t *testing.T) {
	s := smallSettings()
	s.ReinsertFraction = 0.5
	tr := newTestTree(t, 2, WithSettings(s))
	insertAll(t, tr, []spatial.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}})

	assert.Zero(t, tr.reinsertions.Load())
	assert.Equal(t, uint64(1), tr.splits.Load())
	assert.Equal(t, 2, tr.Height())
}

func TestInsert_BlobStoreMatchesMemory(t *testing.T) {
	ctx := context.Background()
	pts := testutil.NewRNG(21).UniformPoints(300, 2)

	mem := newTestTree(t, 2, WithSettings(smallSettings()))
	insertAll(t, mem, pts)

	cached := pagestore.NewCached(pagestore.NewMemory(), 1<<20, nil)
	tr, err := New(ctx, cached, 2, WithSettings(smallSettings()))
	require.NoError(t, err)
	insertAll(t, tr, pts)
	require.NoError(t, tr.Validate(ctx))

	a, err := mem.Stats(ctx)
	require.NoError(t, err)
	b, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Nodes, b.Nodes)
	assert.Equal(t, a.Height, b.Height)
}

func ExampleTree_Insert() {
	ctx := context.Background()
	tr, _ := New(ctx, pagestore.NewMemory(), 2)
	for i, p := range []spatial.Point{{0, 0}, {1, 1}, {5, 5}} {
		_ = tr.Insert(ctx, uint64(i), p)
	}
	res, _ := tr.KNN(ctx, spatial.Point{0.9, 0.9}, 2)
	for _, r := range res {
		fmt.Printf("%d %.3f\n", r.ID, r.Distance)
	}
	// Output:
	// 1 0.141
	// 0 1.273
}
