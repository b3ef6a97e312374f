package xtree_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/xtree"
	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/spatial"
)

func ExampleNew() {
	ctx := context.Background()
	idx, err := xtree.New(ctx, 2)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	points := []spatial.Point{{0, 0}, {3, 4}, {1, 1}, {6, 8}}
	for i, p := range points {
		if err := idx.Insert(ctx, uint64(i), p); err != nil {
			log.Fatal(err)
		}
	}

	res, err := idx.KNN(ctx, spatial.Point{0, 0}, 2)
	if err != nil {
		log.Fatal(err)
	}
	for _, n := range res {
		fmt.Printf("%d %.3f\n", n.ID, n.Distance)
	}
	// Output:
	// 0 0.000
	// 2 1.414
}

func ExampleXTree() {
	ctx := context.Background()
	idx := xtree.XTree(2).
		Manhattan().
		Capacity(2, 4).
		MustBuild(ctx)
	defer idx.Close()

	for i := range 10 {
		_ = idx.Insert(ctx, uint64(i), spatial.Point{float64(i), 0})
	}

	res, _ := idx.Query(spatial.Point{4.5, 1}).Within(2).Execute(ctx)
	for _, n := range res {
		fmt.Printf("%d %.1f\n", n.ID, n.Distance)
	}
	// Output:
	// 4 1.5
	// 5 1.5
}

func ExampleIndex_Commit() {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	idx, _ := xtree.New(ctx, 3, xtree.WithBlobStore(bs))
	_ = idx.Insert(ctx, 42, spatial.Point{1, 2, 3})
	if err := idx.Commit(ctx); err != nil {
		log.Fatal(err)
	}
	_ = idx.Close()

	reopened, err := xtree.Open(ctx, bs)
	if err != nil {
		log.Fatal(err)
	}
	defer reopened.Close()

	res, _ := reopened.KNNByID(ctx, 42, 1)
	fmt.Println(reopened.Len(), res[0].ID)
	// Output: 1 42
}
