// Package testutil provides testing utilities for xtree.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random points, computing exact
// nearest neighbors, and verifying search results.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.UniformPoints(1000, 3)        // uniform [0, 1)
//	pts = rng.ClusteredPoints(1000, 3, 8, 0.05)
//
// # Exact Search (Ground Truth)
//
//	results := testutil.ExactKNN(query, pts, k, distance.Euclidean{})
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exact, got)
package testutil
