// Package cache is a bounded in-memory cache with S3-FIFO eviction.
//
// S3-FIFO keeps two FIFO queues and a ghost set:
//
//   - S (small, ~10% of capacity): every new key starts here.
//   - M (main, the rest): keys read at least once while in S move here.
//   - G (ghost): keys recently evicted from S, bounded to 2x the S target.
//     A ghost key that is inserted again skips S and goes straight to M.
//
// Each entry carries a saturating frequency counter (max 3) bumped on every
// hit. Evicting from S promotes an entry with freq > 0 to M and drops the
// rest into G; evicting from M drops the entry outright.
//
// Nothing is written to disk: cached values may hold personal data.
package cache

import (
	"container/list"
	"sync"
)

type entry[V any] struct {
	value V
	freq  uint8 // saturating in [0, 3]
	elem  *list.Element
	inM   bool
}

// Cache maps string keys to values of type V. It is safe for concurrent use.
type Cache[V any] struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*entry[V]
	sQueue  *list.List // element values are keys
	mQueue  *list.List

	ghostBuf   []string // ring, len == ghostCap
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int
}

// New returns a cache holding at most capacity entries; values < 2 are
// clamped to 2.
func New[V any](capacity int) *Cache[V] {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := max(1, capacity/10)
	ghostCap := max(4, 2*sTarget)
	return &Cache[V]{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*entry[V], capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
	}
}

// Get returns the value for key and counts the hit.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.freq < 3 {
		e.freq++
	}
	return e.value, true
}

// Set stores key. An existing entry keeps its queue position.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}
	_, inM := c.ghostSet[key]
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &entry[V]{value: value, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		if c.sQueue.Len() > 0 {
			c.evictFromS()
		} else {
			c.evictFromM()
		}
	}
}

// Delete drops key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.inM {
		c.mQueue.Remove(e.elem)
	} else {
		c.sQueue.Remove(e.elem)
	}
	delete(c.entries, key)
}

// Len returns the number of resident entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// c.mu must be held.
func (c *Cache[V]) evictFromS() {
	front := c.sQueue.Front()
	key := front.Value.(string)
	c.sQueue.Remove(front)

	e := c.entries[key]
	if e.freq == 0 {
		delete(c.entries, key)
		c.ghostAdd(key)
		return
	}
	e.freq = 0
	e.inM = true
	e.elem = c.mQueue.PushBack(key)
	if c.mQueue.Len() > c.capacity-c.sTarget {
		c.evictFromM()
	}
}

// c.mu must be held.
func (c *Cache[V]) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.mQueue.Remove(front)
	delete(c.entries, key)
}

// c.mu must be held.
func (c *Cache[V]) ghostAdd(key string) {
	if _, ok := c.ghostSet[key]; ok {
		return
	}
	if c.ghostCount == c.ghostCap {
		delete(c.ghostSet, c.ghostBuf[c.ghostHead])
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	c.ghostBuf[(c.ghostHead+c.ghostCount)%c.ghostCap] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
