// Package cache holds the quote snapshot stores behind domain.QuoteCache and
// the generic LRU they share with the postal lookup decorator.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LRU is a thread-safe, size-bounded cache with optional per-entry expiry.
// Expired entries are dropped lazily when they are looked up.
type LRU[V any] struct {
	maxEntries int
	ttl        time.Duration // zero disables expiry
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*node[V]
	head    *node[V] // most recently used
	tail    *node[V] // least recently used
}

type node[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

// NewLRU creates an LRU holding at most maxEntries values. A zero ttl keeps
// entries until they are evicted by size. A nil clock uses the real clock.
func NewLRU[V any](maxEntries int, ttl time.Duration, clock clockwork.Clock) *LRU[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LRU[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*node[V]),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(n) {
		c.drop(n)
		return zero, false
	}
	c.moveToFront(n)
	return n.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clock.Now().Add(c.ttl)
	}

	if n, ok := c.entries[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return
	}

	n := &node[V]{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = n
	c.addToFront(n)

	if len(c.entries) > c.maxEntries {
		c.drop(c.tail)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes every entry.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node[V])
	c.head, c.tail = nil, nil
}

func (c *LRU[V]) expired(n *node[V]) bool {
	return !n.expiresAt.IsZero() && !c.clock.Now().Before(n.expiresAt)
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *LRU[V]) addToFront(n *node[V]) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
}

func (c *LRU[V]) drop(n *node[V]) {
	if n == nil {
		return
	}
	delete(c.entries, n.key)
	c.unlink(n)
}
