package queue

import (
	"cmp"
	"math"
	"slices"
)

// KNNHeap keeps the k best (smallest distance) candidates seen so far.
type KNNHeap struct {
	k  int
	pq *PriorityQueue
}

// NewKNNHeap creates a heap bounded to k results. k must be positive.
func NewKNNHeap(k int) *KNNHeap {
	if k < 1 {
		panic("queue: k must be positive")
	}
	return &KNNHeap{k: k, pq: NewMax(k + 1)}
}

// K returns the capacity of the heap.
func (h *KNNHeap) K() int { return h.k }

// Len returns the number of candidates held.
func (h *KNNHeap) Len() int { return h.pq.Len() }

// KNNDistance returns the k-th best distance, or +Inf while fewer than k
// candidates have been collected.
func (h *KNNHeap) KNNDistance() float64 {
	if h.pq.Len() < h.k {
		return math.Inf(1)
	}
	top, _ := h.pq.Top()
	return top.Distance
}

// Add offers a candidate. It reports whether the candidate was kept.
func (h *KNNHeap) Add(distance float64, id uint64) bool {
	if h.pq.Len() < h.k {
		h.pq.Push(Item{ID: id, Distance: distance})
		return true
	}
	top, _ := h.pq.Top()
	if distance >= top.Distance {
		return false
	}
	h.pq.Pop()
	h.pq.Push(Item{ID: id, Distance: distance})
	return true
}

// Sorted returns the candidates by ascending distance (ties by id). The heap
// is left untouched.
func (h *KNNHeap) Sorted() []Item {
	out := slices.Clone(h.pq.Items())
	slices.SortFunc(out, func(a, b Item) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
