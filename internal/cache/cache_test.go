package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, "casecoach"), mr
}

func TestRedisCacheRoundTripAndPrefix(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, Key("session", "s1"), item{Name: "a", Count: 2}, time.Minute))
	assert.True(t, mr.Exists("casecoach:session:s1"))

	var got item
	hit, err := c.GetJSON(ctx, "session:s1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, item{Name: "a", Count: 2}, got)

	require.NoError(t, c.Del(ctx, "session:s1"))
	hit, err = c.GetJSON(ctx, "session:s1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheCorruptValueIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("casecoach:bad", "{not json"))

	var got item
	hit, err := c.GetJSON(context.Background(), "bad", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("casecoach:bad"))
}

func TestRemember(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (item, error) {
		loads++
		return item{Name: "x", Count: loads}, nil
	}

	first, err := Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	_, err = Remember(ctx, c, "other", time.Minute, func(context.Context) (item, error) {
		return item{}, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")

	nocache, err := Remember[item](ctx, nil, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, nocache.Count)
}
