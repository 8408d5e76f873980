package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis answers the three commands the cache uses from a map.
type memRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *memRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (m *memRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "incr", key)
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	cmd.SetVal(n)
	return cmd
}

func TestSetThenGet(t *testing.T) {
	rdb := newMemRedis()
	c := New(rdb, time.Minute)
	ctx := context.Background()
	fp := "2026-01-28|09:00|21:00|30"

	_, key, ok, err := c.Get(ctx, "cal-1", fp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Key("cal-1", 0, fp), key)
	assert.True(t, strings.HasPrefix(key, "freeslots:v1:cal-1:0:"))

	want := []slots.Span{{Start: "09:00", Stop: "09:30"}}
	require.NoError(t, c.Set(ctx, key, want))

	got, _, ok, err := c.Get(ctx, "cal-1", fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, time.Minute, rdb.ttls[key])
}

func TestSetRejectsEmptyKey(t *testing.T) {
	c := New(newMemRedis(), time.Minute)
	require.Error(t, c.Set(context.Background(), "", nil))
}

func TestEmptyResultIsCachedAsEmpty(t *testing.T) {
	c := New(newMemRedis(), 0)
	ctx := context.Background()

	_, key, _, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key, []slots.Span{}))

	got, _, ok, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInvalidateHidesEarlierEntries(t *testing.T) {
	c := New(newMemRedis(), time.Minute)
	ctx := context.Background()

	_, key1, _, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key1, []slots.Span{{Start: "09:00", Stop: "09:30"}}))
	_, key2, _, err := c.Get(ctx, "cal-2", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key2, []slots.Span{{Start: "10:00", Stop: "10:30"}}))
	require.NoError(t, c.Invalidate(ctx, "cal-1"))

	_, _, ok, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = c.Get(ctx, "cal-2", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
}

// A result computed from the busy set seen before an Invalidate must not
// become visible under the newer version.
func TestInvalidateBetweenMissAndWrite(t *testing.T) {
	c := New(newMemRedis(), time.Minute)
	ctx := context.Background()

	_, key, ok, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, "cal-1"))
	require.NoError(t, c.Set(ctx, key, []slots.Span{{Start: "09:00", Stop: "09:30"}}))

	got, _, ok, err := c.Get(ctx, "cal-1", "fp")
	require.NoError(t, err)
	assert.False(t, ok, "stale entry visible: %v", got)
}

func TestGetPropagatesRedisErrors(t *testing.T) {
	rdb := newMemRedis()
	rdb.getErr = errors.New("connection refused")
	c := New(rdb, time.Minute)

	_, key, _, err := c.Get(context.Background(), "cal-1", "fp")
	require.Error(t, err)
	assert.Empty(t, key)
}

func TestKeyDependsOnFingerprintAndVersion(t *testing.T) {
	a := Key("cal", 1, "2026-01-28|09:00|21:00|30")
	assert.Equal(t, a, Key("cal", 1, "2026-01-28|09:00|21:00|30"))
	assert.NotEqual(t, a, Key("cal", 2, "2026-01-28|09:00|21:00|30"))
	assert.NotEqual(t, a, Key("cal", 1, "2026-01-28|09:00|21:00|45"))
}
