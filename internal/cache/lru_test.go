package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestLRU_BasicGetPut(t *testing.T) {
	c := NewLRU[string](3, 0, nil)

	c.Put("a", "A")
	c.Put("b", "B")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string](2, 0, nil)

	c.Put("a", "A")
	c.Put("b", "B")
	c.Get("a")
	c.Put("c", "C") // evicts "b"

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok, "a was read recently and should survive")
	assert.Equal(t, 2, c.Len())
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[int](2, 0, nil)

	c.Put("a", 1)
	c.Put("a", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewLRU[string](4, time.Minute, clock)

	c.Put("a", "A")

	clock.Advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire exactly at ttl")
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on lookup")
}

func TestLRU_PutRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewLRU[string](4, time.Minute, clock)

	c.Put("a", "A")
	clock.Advance(50 * time.Second)
	c.Put("a", "A2")
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
}

func TestLRU_Purge(t *testing.T) {
	c := NewLRU[string](4, 0, nil)
	c.Put("a", "A")
	c.Put("b", "B")

	c.Purge()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("c", "C")
	_, ok = c.Get("c")
	assert.True(t, ok, "cache is usable after purge")
}

func TestLRU_NonPositiveSizeHoldsOne(t *testing.T) {
	c := NewLRU[string](0, 0, nil)
	c.Put("a", "A")
	c.Put("b", "B")
	assert.Equal(t, 1, c.Len())
}
