// Package relation maps object ids to their coordinates.
//
// The tree stores points in its leaves, but queries by object id (batched
// KNN, KNN by id) need to look a query object up first. A Relation provides
// that lookup.
package relation

import (
	"errors"
	"slices"
	"sync"

	"github.com/hupe1980/xtree/spatial"
)

// ErrNotFound is returned when an id is unknown.
var ErrNotFound = errors.New("relation: object not found")

// Relation resolves object ids to points. Implementations must be safe for
// concurrent use.
type Relation interface {
	Resolve(id uint64) (spatial.Point, error)
}

// Writable is a Relation the index keeps up to date on insert.
type Writable interface {
	Relation
	Put(id uint64, p spatial.Point)
}

// Memory is a map-backed relation.
type Memory struct {
	mu     sync.RWMutex
	points map[uint64]spatial.Point
}

var _ Writable = (*Memory)(nil)

// NewMemory creates an empty relation.
func NewMemory() *Memory {
	return &Memory{points: make(map[uint64]spatial.Point)}
}

// Put stores a copy of p under id, replacing any previous point.
func (m *Memory) Put(id uint64, p spatial.Point) {
	m.mu.Lock()
	m.points[id] = slices.Clone(p)
	m.mu.Unlock()
}

// Resolve returns the point stored under id.
func (m *Memory) Resolve(id uint64) (spatial.Point, error) {
	m.mu.RLock()
	p, ok := m.points[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Delete removes id. It reports whether id was present.
func (m *Memory) Delete(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.points[id]
	delete(m.points, id)
	return ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Func adapts a function to the Relation interface.
type Func func(id uint64) (spatial.Point, error)

// Resolve calls f.
func (f Func) Resolve(id uint64) (spatial.Point, error) { return f(id) }
