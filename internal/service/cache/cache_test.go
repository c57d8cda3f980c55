package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc := NewRedisCache(RedisConfig{Addr: mr.Addr(), Prefix: "test"})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache(10, time.Minute)
	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes("k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)
}

func TestTTLCacheExpiresPerEntry(t *testing.T) {
	c := NewTTLCache(10, time.Hour)
	require.NoError(t, c.SetBytes("k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.GetBytes("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheEvictsOldest(t *testing.T) {
	c := NewTTLCache(2, time.Hour)
	require.NoError(t, c.SetBytes("a", []byte("1"), 0))
	require.NoError(t, c.SetBytes("b", []byte("2"), 0))
	require.NoError(t, c.SetBytes("c", []byte("3"), 0))

	_, ok, _ := c.GetBytes("a")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes("c")
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr, rc := newTestRedis(t)

	_, ok, err := rc.GetBytes("chart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.SetBytes("chart", []byte(`{"total":7}`), time.Minute))
	assert.True(t, mr.Exists("test:chart"))
	assert.Equal(t, time.Minute, mr.TTL("test:chart"))

	b, ok, err := rc.GetBytes("chart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"total":7}`, string(b))

	mr.FastForward(2 * time.Minute)
	_, ok, err = rc.GetBytes("chart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredCachePromotesFromRedis(t *testing.T) {
	mr, rc := newTestRedis(t)
	mem := NewTTLCache(10, time.Hour)
	lc := NewLayeredCache(mem, rc, 30*time.Second)

	require.NoError(t, mr.Set("test:k", "from-redis"))
	b, ok, err := lc.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-redis", string(b))

	// now served from L1 even when redis loses the key
	mr.Del("test:k")
	b, ok, err = lc.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-redis", string(b))
}

func TestLayeredCacheWriteThrough(t *testing.T) {
	mr, rc := newTestRedis(t)
	lc := NewLayeredCache(NewTTLCache(10, time.Hour), rc, time.Minute)

	require.NoError(t, lc.SetBytes("k", []byte("v"), time.Hour))
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestHashKeyStable(t *testing.T) {
	k1 := GenerateKey("chart", HashKey(GenerateKeyWithParams("chart", 7, 30, "a")))
	k2 := GenerateKey("chart", HashKey(GenerateKeyWithParams("chart", 7, 30, "a")))
	k3 := GenerateKey("chart", HashKey(GenerateKeyWithParams("chart", 7, 31, "a")))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, HashKey("x"), 64)
}
