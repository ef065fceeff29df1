package blockcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheGetMiss(t *testing.T) {
	c := New()
	_, ok := c.Get(100)
	require.False(t, ok)
}

func TestCachePutGet(t *testing.T) {
	c := New()
	c.Put(100, Entry{Hash: "0xabc", ParentHash: "0xdef", BlockTime: 1000})

	entry, ok := c.Get(100)
	require.True(t, ok)
	require.Equal(t, "0xabc", entry.Hash)
	require.Equal(t, int64(1000), entry.BlockTime)
}

func TestCachePruneRemovesAtOrBelow(t *testing.T) {
	c := New()
	c.Put(98, Entry{Hash: "0x1"})
	c.Put(99, Entry{Hash: "0x2"})
	c.Put(100, Entry{Hash: "0x3"})
	c.Put(101, Entry{Hash: "0x4"})

	c.Prune(99)

	_, ok := c.Get(98)
	require.False(t, ok)
	_, ok = c.Get(99)
	require.False(t, ok)
	_, ok = c.Get(100)
	require.True(t, ok)
	_, ok = c.Get(101)
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestCacheDropRemovesAtOrAbove(t *testing.T) {
	c := New()
	c.Put(98, Entry{Hash: "0x1"})
	c.Put(99, Entry{Hash: "0x2"})
	c.Put(100, Entry{Hash: "0x3"})

	c.Drop(99)

	_, ok := c.Get(98)
	require.True(t, ok)
	_, ok = c.Get(99)
	require.False(t, ok)
	_, ok = c.Get(100)
	require.False(t, ok)
}

func TestCachePutOverwrites(t *testing.T) {
	c := New()
	c.Put(100, Entry{Hash: "0xold"})
	c.Put(100, Entry{Hash: "0xnew"})

	entry, ok := c.Get(100)
	require.True(t, ok)
	require.Equal(t, "0xnew", entry.Hash)
	require.Equal(t, 1, c.Len())
}
