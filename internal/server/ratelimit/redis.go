package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "pinvault:attempts:"
	successKeyPrefix = "pinvault:successes:"

	// recordTTL bounds keys written outside Reserve, which have no policy window.
	recordTTL = 24 * time.Hour
)

// reserveScript trims the window, counts what is left, then adds the new
// attempt. Running it as one script makes check-and-record atomic.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
if count < max then
	return 1
end
return 0
`)

// RedisLimiter keeps failed attempts in one sorted set per identifier,
// scored by attempt time in milliseconds. Successful attempts go to a
// second set so that the failure count stays a single ZCOUNT.
type RedisLimiter struct {
	rdb redis.UniversalClient
	now Clock
}

func NewRedisLimiter(rdb redis.UniversalClient, now Clock) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: now}
}

func (l *RedisLimiter) Reserve(ctx context.Context, identifier string, p Policy) (Reservation, error) {
	r := Reservation{ID: uuid.NewString(), Identifier: identifier}

	allowed, err := reserveScript.Run(ctx, l.rdb, []string{redisKeyPrefix + identifier},
		l.now().UnixMilli(), p.Window.Milliseconds(), p.MaxAttempts, r.ID).Int()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve attempt: %w", err)
	}
	r.Allowed = allowed == 1
	return r, nil
}

func (l *RedisLimiter) Succeed(ctx context.Context, r Reservation) error {
	if !r.Allowed || r.ID == "" {
		return nil
	}
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, redisKeyPrefix+r.Identifier, r.ID)
		l.addSuccess(ctx, pipe, r.Identifier, r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	return nil
}

func (l *RedisLimiter) IsAllowed(ctx context.Context, identifier string, p Policy) (bool, error) {
	now := l.now().UnixMilli()
	n, err := l.rdb.ZCount(ctx, redisKeyPrefix+identifier,
		strconv.FormatInt(now-p.Window.Milliseconds(), 10), "+inf").Result()
	if err != nil {
		return false, err
	}
	return n < int64(p.MaxAttempts), nil
}

func (l *RedisLimiter) Record(ctx context.Context, identifier string, success bool) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if success {
			l.addSuccess(ctx, pipe, identifier, uuid.NewString())
			return nil
		}
		key := redisKeyPrefix + identifier
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(l.now().UnixMilli()), Member: uuid.NewString()})
		pipe.Expire(ctx, key, recordTTL)
		return nil
	})
	return err
}

func (l *RedisLimiter) addSuccess(ctx context.Context, pipe redis.Pipeliner, identifier, member string) {
	key := successKeyPrefix + identifier
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(l.now().UnixMilli()), Member: member})
	pipe.Expire(ctx, key, recordTTL)
}
