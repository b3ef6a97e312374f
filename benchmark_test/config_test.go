package benchmark_test

import (
	"context"
	"testing"

	"github.com/hupe1980/xtree"
	"github.com/hupe1980/xtree/spatial"
	"github.com/hupe1980/xtree/testutil"
)

const (
	dimSmall  = 2
	dimMedium = 8
	dimLarge  = 16

	sizeSmall  = 10_000
	sizeMedium = 50_000
)

var variants = map[string]xtree.Variant{
	"xtree": xtree.VariantXTree,
	"rstar": xtree.VariantRStar,
}

// loadIndex builds an index over n clustered points. Building is excluded
// from the benchmark timer.
func loadIndex(b *testing.B, n, dim int, opts ...xtree.Option) (*xtree.Index, []spatial.Point) {
	b.Helper()
	b.StopTimer()
	defer b.StartTimer()

	ctx := context.Background()
	idx, err := xtree.New(ctx, dim, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	points := testutil.NewRNG(42).ClusteredPoints(n, dim, 32, 0.05)
	for i, p := range points {
		if err := idx.Insert(ctx, uint64(i), p); err != nil {
			b.Fatal(err)
		}
	}
	return idx, points
}

func makeQueries(n, dim int) []spatial.Point {
	return testutil.NewRNG(7).UniformPoints(n, dim)
}
