// Package tree implements the R*-tree / X-tree insertion engine and the
// k-nearest-neighbor query engine on top of a page store.
//
// Nodes live in a pagestore.Store and reference each other by page id only.
// The tree takes no locks: callers serialize Insert and Delete against each
// other and against queries, while queries may run concurrently.
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/pagestore"
	"github.com/hupe1980/xtree/spatial"
)

// Tree is a disk-page oriented spatial index over points.
type Tree struct {
	store    pagestore.Store
	dist     distance.Func
	settings Settings
	dim      int
	logger   *slog.Logger

	root   node.PageID
	height int // number of levels, 1 for a leaf root
	count  uint64

	// onSplit observes every overflow decision; used by tests.
	onSplit func(level int, d SplitDecision)

	distanceCalcs atomic.Uint64
	splits        atomic.Uint64
	overlapSplits atomic.Uint64
	supernodes    atomic.Uint64
	reinsertions  atomic.Uint64
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger for structural events (debug level).
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithDistance sets the distance function used by queries and reinsertion.
func WithDistance(d distance.Func) Option {
	return func(t *Tree) {
		if d != nil {
			t.dist = d
		}
	}
}

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(t *Tree) {
		t.settings = s
	}
}

// State locates the root of a persisted tree.
type State struct {
	Root   node.PageID
	Height int
	Count  uint64
}

func newTree(store pagestore.Store, dim int, opts []Option) (*Tree, error) {
	t := &Tree{
		store:    store,
		dist:     distance.Euclidean{},
		settings: DefaultSettings(),
		dim:      dim,
		logger:   slog.New(slog.DiscardHandler),
		root:     node.NoPage,
	}
	for _, opt := range opts {
		opt(t)
	}
	if dim < 1 {
		return nil, fmt.Errorf("%w: dimension %d < 1", ErrInvalidSettings, dim)
	}
	if err := t.settings.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// New creates an empty tree whose root is a fresh leaf page.
func New(ctx context.Context, store pagestore.Store, dim int, opts ...Option) (*Tree, error) {
	t, err := newTree(store, dim, opts)
	if err != nil {
		return nil, err
	}
	root, err := store.Allocate(ctx, true, 0)
	if err != nil {
		return nil, fmt.Errorf("tree: allocate root: %w", err)
	}
	if err := store.Write(ctx, root); err != nil {
		return nil, fmt.Errorf("tree: write root: %w", err)
	}
	t.root, t.height = root.ID, 1
	return t, nil
}

// Open attaches to a tree previously persisted in store.
func Open(ctx context.Context, store pagestore.Store, dim int, st State, opts ...Option) (*Tree, error) {
	t, err := newTree(store, dim, opts)
	if err != nil {
		return nil, err
	}
	root, err := store.Fetch(ctx, st.Root)
	if err != nil {
		return nil, fmt.Errorf("tree: open root: %w", err)
	}
	if root.Level != st.Height-1 {
		return nil, invariantf("root level %d does not match height %d", root.Level, st.Height)
	}
	t.root, t.height, t.count = st.Root, st.Height, st.Count
	return t, nil
}

// State returns the current root location.
func (t *Tree) State() State {
	return State{Root: t.root, Height: t.height, Count: t.count}
}

// Len returns the number of indexed objects.
func (t *Tree) Len() uint64 { return t.count }

// Dim returns the dimensionality.
func (t *Tree) Dim() int { return t.dim }

// Height returns the number of levels.
func (t *Tree) Height() int { return t.height }

// Settings returns the tree settings.
func (t *Tree) Settings() Settings { return t.settings }

// Distance returns the distance function.
func (t *Tree) Distance() distance.Func { return t.dist }

func (t *Tree) checkDim(p spatial.Point) error {
	if len(p) != t.dim {
		return &ErrDimensionMismatch{Expected: t.dim, Actual: len(p)}
	}
	return nil
}

func (t *Tree) fetch(ctx context.Context, id node.PageID) (*node.Node, error) {
	n, err := t.store.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tree: fetch page %d: %w", id, err)
	}
	return n, nil
}

func (t *Tree) write(ctx context.Context, n *node.Node) error {
	if err := t.store.Write(ctx, n); err != nil {
		return fmt.Errorf("tree: write page %d: %w", n.ID, err)
	}
	return nil
}
