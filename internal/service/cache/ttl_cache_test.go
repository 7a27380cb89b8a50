package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	_, ok, err = c.GetBytes("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 0)

	time.Sleep(15 * time.Millisecond)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestTTLCacheOverwrite(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("k", []byte("old"), time.Minute))
	require.NoError(t, c.SetBytes("k", []byte("new"), time.Minute))

	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), b)
}
