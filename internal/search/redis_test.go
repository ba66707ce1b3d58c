package search

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisIndex(t *testing.T) (*RedisIndex, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	index := NewRedisIndex(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { index.Close() })
	return index, mr
}

func TestRedisIndexIndex(t *testing.T) {
	index, mr := newRedisIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, pkg("Newtonsoft.Json", "13.0.1", "Json framework", "json")))
	require.NoError(t, index.Index(ctx, pkg("Newtonsoft.Json", "13.0.2-beta", "Json framework")))

	assert.Equal(t, "Newtonsoft.Json", mr.HGet("test:pkg:newtonsoft.json:13.0.1", "id"))
	assert.Equal(t, "13.0.1", mr.HGet("test:pkg:newtonsoft.json:13.0.1", "version"))
	assert.Equal(t, "Json framework", mr.HGet("test:pkg:newtonsoft.json:13.0.1", "description"))
	assert.Equal(t, "1", mr.HGet("test:pkg:newtonsoft.json:13.0.2-beta", "is_prerelease"))

	versions, err := mr.Members("test:versions:newtonsoft.json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"13.0.1", "13.0.2-beta"}, versions)

	ids, err := mr.ZMembers("test:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"newtonsoft.json"}, ids)
}

func TestRedisIndexRemove(t *testing.T) {
	index, mr := newRedisIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, pkg("Foo", "1.0.0", "")))
	require.NoError(t, index.Index(ctx, pkg("Foo", "2.0.0", "")))
	require.NoError(t, index.Index(ctx, pkg("Bar", "1.0.0", "")))

	require.NoError(t, index.Remove(ctx, "FOO", "1.0.0"))
	assert.False(t, mr.Exists("test:pkg:foo:1.0.0"))
	assert.True(t, mr.Exists("test:pkg:foo:2.0.0"))
	ids, err := mr.ZMembers("test:ids")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"foo", "bar"}, ids, "foo still has a version")

	require.NoError(t, index.Remove(ctx, "foo", "2.0.0"))
	assert.False(t, mr.Exists("test:pkg:foo:2.0.0"))
	assert.False(t, mr.Exists("test:versions:foo"))
	ids, err = mr.ZMembers("test:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, ids)

	// removing something never indexed is not an error
	require.NoError(t, index.Remove(ctx, "missing", "1.0.0"))
}

func TestRedisIndexUnavailable(t *testing.T) {
	index, mr := newRedisIndex(t)
	mr.Close()

	err := index.Index(context.Background(), pkg("Foo", "1.0.0", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to index")
}
