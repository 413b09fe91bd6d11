// Package mergecache implements the ordering-parameterized priority
// structure that selects the next merged record across sources.
//
// It plays the role of IMultiMerger / MultiMerger<T> in BamMultiReaderPrivate,
// implemented with Go's standard container/heap, the same structural idiom
// as ryand0ng's log-structured-merge-tree IterHeap and onedusk-pd's
// heap-based merge: a slice type satisfying heap.Interface, wrapped by a
// small typed API so callers never see sort.Interface plumbing.
package mergecache

import (
	"container/heap"

	"github.com/aln-tools/multireader/ordering"
)

// Entry is anything a Cache can hold: an ordering.Item that also knows
// which source produced it, so Remove can evict by source identity.
type Entry interface {
	ordering.Item
}

// Cache is an ordered container of live entries, at most one per source,
// parameterized by a fixed Ordering chosen at construction.
type Cache struct {
	order ordering.Ordering
	items []Entry
	// index maps a source id to its position in items, for O(log N)
	// Remove-by-source. Kept in sync by heap callbacks; reset by Clear.
	index map[int]int
}

// New returns an empty Cache using the given ordering. The ordering is
// frozen for the Cache's lifetime.
func New(order ordering.Ordering) *Cache {
	return &Cache{order: order, index: make(map[int]int)}
}

// Ordering returns the ordering this cache was constructed with.
func (c *Cache) Ordering() ordering.Ordering { return c.order }

// Insert adds item to the cache. Pre: item's source is not already present.
func (c *Cache) Insert(item Entry) {
	heap.Push((*heapView)(c), item)
}

// PopMin removes and returns the minimum item under the active ordering.
// Pre: !c.IsEmpty().
func (c *Cache) PopMin() Entry {
	return heap.Pop((*heapView)(c)).(Entry)
}

// Remove evicts any entry belonging to sourceID. No-op if absent.
func (c *Cache) Remove(sourceID int) {
	i, ok := c.index[sourceID]
	if !ok {
		return
	}
	heap.Remove((*heapView)(c), i)
}

// Clear empties the cache without touching the handles its entries refer
// to; ownership of those handles lies with the source list, not the cache.
func (c *Cache) Clear() {
	c.items = c.items[:0]
	c.index = make(map[int]int)
}

// IsEmpty reports whether the cache currently holds no entries.
func (c *Cache) IsEmpty() bool { return len(c.items) == 0 }

// Size returns the number of entries currently held.
func (c *Cache) Size() int { return len(c.items) }

// heapView adapts *Cache to container/heap.Interface without exposing that
// plumbing on Cache's own method set.
type heapView Cache

func (h *heapView) Len() int { return len(h.items) }

func (h *heapView) Less(i, j int) bool {
	return h.order.Less(h.items[i], h.items[j])
}

func (h *heapView) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].SourceID()] = i
	h.index[h.items[j].SourceID()] = j
}

func (h *heapView) Push(x any) {
	item := x.(Entry)
	h.index[item.SourceID()] = len(h.items)
	h.items = append(h.items, item)
}

func (h *heapView) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	delete(h.index, item.SourceID())
	return item
}
