// Package cache provides a Redis-backed projection of open changing-room
// sessions keyed by store and tag. The database stays the source of truth;
// a cache miss or a Redis failure only costs a database read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

const (
	keyPrefix = "changingroom:open:"
	genPrefix = "changingroom:gen:"

	// genTTL keeps a generation counter far longer than any entry or any
	// in-flight read.
	genTTL = 24 * time.Hour
)

// setIfGeneration stores ARGV[2] under KEYS[1] for ARGV[3] ms only while
// the counter at KEYS[2] (missing = 0) still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// DefaultTTL bounds how long an entry may outlive a missed invalidation.
const DefaultTTL = 5 * time.Minute

// RedisSessionCache implements services.SessionCache on top of go-redis.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionCache wraps client. A non-positive ttl uses DefaultTTL.
func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSessionCache{client: client, ttl: ttl}
}

// Key returns the Redis key for the open session holding tag in storeID.
func Key(storeID, tag string) string {
	return keyPrefix + storeID + ":" + tag
}

func genKey(storeID, tag string) string {
	return genPrefix + storeID + ":" + tag
}

// GetOpenByTag returns the cached session, if any. Entries whose status is
// no longer open are treated as misses.
func (c *RedisSessionCache) GetOpenByTag(ctx context.Context, storeID, tag string) (*domain.Session, bool) {
	raw, err := c.client.Get(ctx, Key(storeID, tag)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("tag", tag).Msg("session cache get failed")
		}
		return nil, false
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil || !s.Status.IsOpen() {
		return nil, false
	}
	return &s, true
}

// Generation returns the invalidation counter for storeID and tag. ok is
// false when Redis cannot be read, and the caller must not fill the cache.
func (c *RedisSessionCache) Generation(ctx context.Context, storeID, tag string) (uint64, bool) {
	gen, err := c.client.Get(ctx, genKey(storeID, tag)).Uint64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		log.Ctx(ctx).Warn().Err(err).Str("tag", tag).Msg("session cache generation read failed")
		return 0, false
	}
	return gen, true
}

// SetOpenByTag stores s under its store and tag unless the tag was
// invalidated after gen was read. Closed sessions are skipped.
func (c *RedisSessionCache) SetOpenByTag(ctx context.Context, s *domain.Session, gen uint64) {
	if s == nil || !s.Status.IsOpen() {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	keys := []string{Key(s.StoreID, s.Tag), genKey(s.StoreID, s.Tag)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys, strconv.FormatUint(gen, 10), raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", s.ID).Msg("session cache set failed")
		return
	}
	if stored == 0 {
		log.Ctx(ctx).Debug().Str("session_id", s.ID).Msg("session cache fill skipped, tag invalidated meanwhile")
	}
}

// Invalidate advances the generation for storeID and tag and drops its
// entry in one transaction.
func (c *RedisSessionCache) Invalidate(ctx context.Context, storeID, tag string) {
	gk := genKey(storeID, tag)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gk)
		p.Expire(ctx, gk, genTTL)
		p.Del(ctx, Key(storeID, tag))
		return nil
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("tag", tag).Msg("session cache invalidate failed")
	}
}

// Ping checks the connection; used at startup to decide whether to enable
// the cache at all.
func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
