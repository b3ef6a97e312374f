// Package spatial provides the bounding-box geometry shared by the index,
// the page codec and the distance functions.
//
// All operations are pure. Mixing boxes of different dimensionality is a
// programming error and panics.
package spatial
