package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory(time.Minute, 10)
	c.Set("search:widget", []string{"a"})

	v, ok := c.Get("search:widget")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	_, ok = c.Get("search:gadget")
	assert.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Second, 10)
	c.now = func() time.Time { return now }
	c.Set("k", 1)

	now = now.Add(2 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryInvalidatePrefix(t *testing.T) {
	c := NewMemory(time.Minute, 10)
	c.Set("search:a", 1)
	c.Set("search:b", 2)
	c.Set("other", 3)

	c.Invalidate("search:")
	_, ok := c.Get("search:a")
	assert.False(t, ok)
	_, ok = c.Get("other")
	assert.True(t, ok)

	c.Invalidate("")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryEvictsWhenFull(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute, 2)
	c.now = func() time.Time { return now }

	c.Set("first", 1)
	now = now.Add(time.Second)
	c.Set("second", 2)
	now = now.Add(time.Second)
	c.Set("third", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
