package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/goconsolidation/internal/domain"
)

// setIfNewer writes the hash only when no cached version is equal or newer.
// KEYS[1] balance key; ARGV[1] version, ARGV[2] payload, ARGV[3] ttl in ms.
var setIfNewer = redis.NewScript(`
local cached = tonumber(redis.call('HGET', KEYS[1], 'version'))
if cached and cached >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// BalanceCache implements usecase.BalanceCache using Redis. Each day is a hash
// holding the aggregate JSON next to its version.
type BalanceCache struct {
	client *redis.Client
	prefix string
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

func (c *BalanceCache) key(date time.Time) string {
	return c.prefix + domain.NormalizeDate(date).Format(domain.DateLayout)
}

// Get returns the cached balance for date. ok is false on a miss.
func (c *BalanceCache) Get(ctx context.Context, date time.Time) (*domain.DailyBalance, bool, error) {
	data, err := c.client.HGet(ctx, c.key(date), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var balance domain.DailyBalance
	if err := json.Unmarshal(data, &balance); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, c.key(date)).Err()
		return nil, false, nil
	}

	return &balance, true, nil
}

// Set stores a balance with TTL unless the cache already holds the same or a
// newer version of that day.
func (c *BalanceCache) Set(ctx context.Context, balance *domain.DailyBalance, ttl time.Duration) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.client, []string{c.key(balance.Date)},
		balance.Version, data, ttl.Milliseconds()).Err()
}

// Delete evicts the given dates.
func (c *BalanceCache) Delete(ctx context.Context, dates ...time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, c.key(d))
	}
	return c.client.Del(ctx, keys...).Err()
}
