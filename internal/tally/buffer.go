package tally

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tally:"

// Buffer accumulates tallies per email between flushes.
type Buffer interface {
	Add(ctx context.Context, email string, slugs []string) (InterestTally, error)
	Load(ctx context.Context, email string) (InterestTally, error)
	Reset(ctx context.Context, email string) error
}

// incrementScript bumps each slug in the hash, refusing new slugs once the
// hash holds ARGV[2] fields, refreshes the TTL and returns the whole hash.
// KEYS[1] hash key; ARGV[1] ttl seconds; ARGV[2] max fields; ARGV[3..] slugs.
var incrementScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
local maxFields = tonumber(ARGV[2])
for i = 3, #ARGV do
	local slug = ARGV[i]
	if redis.call('HEXISTS', key, slug) == 1 or redis.call('HLEN', key) < maxFields then
		redis.call('HINCRBY', key, slug, 1)
	end
end
if redis.call('EXISTS', key) == 1 then
	redis.call('EXPIRE', key, ttl)
end
return redis.call('HGETALL', key)
`)

// RedisBuffer keeps one hash per email under "tally:<email>".
type RedisBuffer struct {
	client        redis.UniversalClient
	ttl           time.Duration
	maxCategories int
}

func NewRedisBuffer(client redis.UniversalClient, ttl time.Duration, maxCategories int) *RedisBuffer {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if maxCategories <= 0 {
		maxCategories = 64
	}
	return &RedisBuffer{client: client, ttl: ttl, maxCategories: maxCategories}
}

// Key returns the hash key for email.
func Key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

func (b *RedisBuffer) Add(ctx context.Context, email string, slugs []string) (InterestTally, error) {
	args := make([]interface{}, 0, len(slugs)+2)
	args = append(args, int64(b.ttl/time.Second), b.maxCategories)
	for _, s := range slugs {
		if s = NormalizeSlug(s); s != "" {
			args = append(args, s)
		}
	}

	res, err := incrementScript.Run(ctx, b.client, []string{Key(email)}, args...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("increment tally: %w", err)
	}
	return pairsToTally(res)
}

func (b *RedisBuffer) Load(ctx context.Context, email string) (InterestTally, error) {
	res, err := b.client.HGetAll(ctx, Key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("load tally: %w", err)
	}
	out := make(InterestTally, len(res))
	for k, v := range res {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("load tally: bad count for %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func (b *RedisBuffer) Reset(ctx context.Context, email string) error {
	if err := b.client.Del(ctx, Key(email)).Err(); err != nil {
		return fmt.Errorf("reset tally: %w", err)
	}
	return nil
}

func pairsToTally(pairs []string) (InterestTally, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("increment tally: odd reply length %d", len(pairs))
	}
	out := make(InterestTally, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		n, err := strconv.ParseInt(pairs[i+1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("increment tally: bad count for %s: %w", pairs[i], err)
		}
		out[pairs[i]] = n
	}
	return out, nil
}

// NopBuffer is used when no Redis is configured. It stores nothing.
type NopBuffer struct{}

func (NopBuffer) Add(ctx context.Context, email string, slugs []string) (InterestTally, error) {
	return InterestTally{}, nil
}

func (NopBuffer) Load(ctx context.Context, email string) (InterestTally, error) {
	return InterestTally{}, nil
}

func (NopBuffer) Reset(ctx context.Context, email string) error { return nil }
