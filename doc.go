// Package xtree provides an embedded spatial index for d-dimensional points
// based on the X-tree, with the R*-tree as a configurable variant.
//
// The X-tree keeps the R*-tree's insertion (least-enlargement subtree
// choice, forced reinsertion, topological split) but refuses directory
// splits that would produce highly overlapping groups. It first tries an
// overlap-minimal split and otherwise extends the node into a supernode
// spanning several blocks.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := xtree.New(ctx, 3)
//	defer idx.Close()
//
//	_ = idx.Insert(ctx, 1, spatial.Point{0, 0, 0})
//	_ = idx.Insert(ctx, 2, spatial.Point{1, 1, 1})
//
//	res, _ := idx.KNN(ctx, spatial.Point{0.2, 0, 0}, 1)
//	fmt.Println(res[0].ID, res[0].Distance)
//
// Or with the fluent builder:
//
//	idx, _ := xtree.XTree(3).Manhattan().Capacity(8, 24).Build(ctx)
//
// # Queries
//
//   - KNN, KNNByID: k nearest neighbors of a point or an indexed object
//   - KNNBatch: k nearest neighbors of many indexed objects in one traversal
//   - KNNMany: independent KNN queries run in parallel
//   - Range: all objects within a radius
//   - Search: all objects inside a box
//
// Results are ordered by ascending distance; ties come in tree order.
//
// # Persistence
//
// With WithBlobStore, nodes live as compressed pages in a blob store
// (local directory, S3, MinIO) behind a bounded page cache:
//
//	idx, _ := xtree.New(ctx, 3, xtree.WithBlobStore(blobstore.NewLocalStore("./data")))
//	// ... insert ...
//	_ = idx.Commit(ctx)
//
//	idx, _ = xtree.Open(ctx, blobstore.NewLocalStore("./data")) // reopen
//
// Commit flushes dirty pages and then writes the manifest that names the
// root page, so a reopened index sees the state of the last commit.
package xtree
