package reminder

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "reminder:sent:"

// RedisLedger is the shared dedup ledger for deployments that run more than
// one scanner process. Entries expire via Redis TTL at the retention
// horizon; the suppression check compares the stored send timestamp.
type RedisLedger struct {
	client    *redis.Client
	suppress  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewRedisLedger builds a ledger on an existing Redis client.
func NewRedisLedger(client *redis.Client, suppress, retention time.Duration, nowFn func() time.Time) *RedisLedger {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &RedisLedger{
		client:    client,
		suppress:  suppress,
		retention: retention,
		now:       nowFn,
	}
}

// Purge is a no-op: Redis TTL handles retention.
func (l *RedisLedger) Purge(_ context.Context) {}

// HasRecent reports whether key was marked within the suppression horizon.
// Redis errors read as "not recent" so a ledger outage degrades to possible
// duplicates rather than lost reminders.
func (l *RedisLedger) HasRecent(ctx context.Context, key Key) bool {
	val, err := l.client.Get(ctx, redisKeyPrefix+key.String()).Result()
	if err != nil {
		return false
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false
	}
	return l.now().Sub(time.Unix(unix, 0)) < l.suppress
}

// Mark records a successful send for key with the retention TTL.
func (l *RedisLedger) Mark(ctx context.Context, key Key) {
	_ = l.client.Set(ctx, redisKeyPrefix+key.String(),
		strconv.FormatInt(l.now().Unix(), 10), l.retention).Err()
}

// Size counts live entries by scanning the key prefix.
func (l *RedisLedger) Size(ctx context.Context) int {
	var count int
	iter := l.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}
