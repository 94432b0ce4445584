package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStable(t *testing.T) {
	k1 := Key("crm", "SELECT 1")
	k2 := Key("crm", "SELECT 1")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
}

func TestKeyDiscriminates(t *testing.T) {
	base := Key("crm", "SELECT 1")
	assert.NotEqual(t, base, Key("billing", "SELECT 1"))
	assert.NotEqual(t, base, Key("crm", "SELECT 2"))

	// Null separators prevent field-boundary ambiguity.
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestKeyNormalizesUnicode(t *testing.T) {
	// U+00E9 composed vs e + U+0301 combining acute: same text, same key.
	composed := Key("crm", "SELECT * FROM café")
	decomposed := Key("crm", "SELECT * FROM café")
	assert.Equal(t, composed, decomposed)
}

func TestCachePutGet(t *testing.T) {
	c := New[string](4, time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	c := New[int](4, 20*time.Millisecond)
	c.Put("k", 42)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheEviction(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *Cache[string]
	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	c.Purge()
}
