// Package distance provides the distance functions used by the spatial index.
//
// Every function offers two operations: the point-to-point Distance and a
// MinDist from a query point to a bounding box. MinDist is a lower bound of the
// distance to every point the box can contain; the best-first searches prune
// on it, so an implementation that overestimates silently drops neighbors.
//
// # Supported Metrics
//
//   - MetricEuclidean: L2 distance (default)
//   - MetricSquaredEuclidean: squared L2, same ordering without the sqrt
//   - MetricManhattan: L1 distance
//   - MetricMaximum: L-infinity distance
//
// # Usage
//
//	fn, _ := distance.Provider(distance.MetricEuclidean)
//	d := fn.Distance(a, b)
//	bound := fn.MinDist(box, q)
package distance
