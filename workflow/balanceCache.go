package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/redis/go-redis/v9"
)

// BalanceCache holds displayed balances keyed by account name. Balances stay
// derived quantities; the cache is only a shortcut for the as-of-today read
// and is invalidated on every committed write that touches the account.
type BalanceCache interface {
	Get(ctx context.Context, accountName string) (models.Money, bool, error)
	Set(ctx context.Context, accountName string, balance models.Money) error
	Invalidate(ctx context.Context, accountNames ...string) error
}

const balanceKeyPrefix = "financas:balance:"

type redisBalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBalanceCache(rdb *redis.Client) BalanceCache {
	if rdb == nil {
		return nil
	}
	return &redisBalanceCache{rdb: rdb, ttl: 10 * time.Minute}
}

func (c *redisBalanceCache) Get(ctx context.Context, accountName string) (models.Money, bool, error) {
	val, err := c.rdb.Get(ctx, balanceKeyPrefix+accountName).Result()
	if err == redis.Nil {
		return models.Money{}, false, nil
	}
	if err != nil {
		return models.Money{}, false, err
	}
	m, err := models.MoneyFromString(val)
	if err != nil {
		// a corrupt entry is treated as a miss and overwritten on next Set
		return models.Money{}, false, nil
	}
	return m, true, nil
}

func (c *redisBalanceCache) Set(ctx context.Context, accountName string, balance models.Money) error {
	return c.rdb.Set(ctx, balanceKeyPrefix+accountName, balance.String(), c.ttl).Err()
}

func (c *redisBalanceCache) Invalidate(ctx context.Context, accountNames ...string) error {
	if len(accountNames) == 0 {
		return nil
	}
	keys := make([]string, 0, len(accountNames))
	for _, name := range accountNames {
		keys = append(keys, balanceKeyPrefix+name)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

type memoryBalanceCache struct {
	mu       sync.RWMutex
	balances map[string]models.Money
}

func NewMemoryBalanceCache() BalanceCache {
	return &memoryBalanceCache{balances: map[string]models.Money{}}
}

func (c *memoryBalanceCache) Get(ctx context.Context, accountName string) (models.Money, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.balances[accountName]
	return m, ok, nil
}

func (c *memoryBalanceCache) Set(ctx context.Context, accountName string, balance models.Money) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[accountName] = balance
	return nil
}

func (c *memoryBalanceCache) Invalidate(ctx context.Context, accountNames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range accountNames {
		delete(c.balances, name)
	}
	return nil
}
