// Package pagestore persists tree nodes as pages addressed by node.PageID.
//
// Three implementations compose:
//
//   - Memory keeps nodes in an in-process arena
//   - Blob encodes each node into its own object of a blobstore.BlobStore
//   - Cached puts a byte-bounded LRU of decoded nodes (with write-back of
//     dirty pages) in front of any Store
//
// Stores are safe for concurrent Fetch calls. Mutations (Allocate, Write,
// Remove, Sync) must be serialized by the caller.
package pagestore

import (
	"context"
	"errors"

	"github.com/hupe1980/xtree/internal/node"
)

var (
	// ErrPageNotFound is returned when fetching a page that was never written
	// or has been removed.
	ErrPageNotFound = errors.New("pagestore: page not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("pagestore: closed")
)

// Store is the page-file collaborator of the tree.
type Store interface {
	// Fetch returns the node stored under id.
	Fetch(ctx context.Context, id node.PageID) (*node.Node, error)
	// Allocate reserves a fresh page id and returns an empty node for it.
	// The node becomes visible to Fetch once written.
	Allocate(ctx context.Context, leaf bool, level int) (*node.Node, error)
	// Write stores n under n.ID.
	Write(ctx context.Context, n *node.Node) error
	// Remove releases a page. Persistent stores keep the page and its id
	// reserved until the next Sync.
	Remove(ctx context.Context, id node.PageID) error
	// Sync makes all writes and removals durable.
	Sync(ctx context.Context) error
	// Close releases resources. It does not sync.
	Close() error
}

// Stats are page access counters.
type Stats struct {
	Pages       int    // live pages
	Reads       uint64 // pages fetched from the backing storage
	Writes      uint64 // pages written to the backing storage
	CacheHits   uint64
	CacheMisses uint64
}

// StatsReporter is implemented by stores that count page accesses.
type StatsReporter interface {
	PageStats() Stats
}
