package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "freeslots:v1:"
	versionPrefix = "freeslots:ver:"
)

// Client is the subset of redis commands the cache issues.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Cache keeps computed chunk lists in Redis. Every key embeds the
// calendar's current version, so bumping the version hides old entries
// until their TTL expires them.
type Cache struct {
	rdb Client
	ttl time.Duration
}

func New(rdb Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get looks up the entry for the calendar's current version. The returned
// key pins that version; pass it to Set so a result computed before an
// Invalidate is never stored under the newer version.
func (c *Cache) Get(ctx context.Context, calendarID, fingerprint string) ([]slots.Span, string, bool, error) {
	key, err := c.key(ctx, calendarID, fingerprint)
	if err != nil {
		return nil, "", false, err
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, key, false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	var spans []slots.Span
	if err := json.Unmarshal(raw, &spans); err != nil {
		return nil, "", false, fmt.Errorf("decode cached slots: %w", err)
	}
	if spans == nil {
		spans = []slots.Span{}
	}
	return spans, key, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, spans []slots.Span) error {
	if key == "" {
		return errors.New("empty cache key")
	}
	raw, err := json.Marshal(spans)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, calendarID string) error {
	return c.rdb.Incr(ctx, versionPrefix+calendarID).Err()
}

func (c *Cache) key(ctx context.Context, calendarID, fingerprint string) (string, error) {
	ver, err := c.version(ctx, calendarID)
	if err != nil {
		return "", err
	}
	return Key(calendarID, ver, fingerprint), nil
}

func (c *Cache) version(ctx context.Context, calendarID string) (int64, error) {
	raw, err := c.rdb.Get(ctx, versionPrefix+calendarID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ver, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cache version %q: %w", raw, err)
	}
	return ver, nil
}

// Key renders the entry key for a calendar version and query fingerprint.
func Key(calendarID string, version int64, fingerprint string) string {
	return keyPrefix + calendarID + ":" + strconv.FormatInt(version, 10) + ":" +
		strconv.FormatUint(xxhash.Sum64String(fingerprint), 16)
}
