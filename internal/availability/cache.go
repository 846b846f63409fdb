package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casavisita/platform/pkg/logging"
)

// Cache keeps computed calendars in Redis for a short TTL so widget polling
// does not recompute the full horizon on every request. A nil *Cache is a
// no-op, which keeps Redis optional in local setups.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger.Component("availability-cache")}
}

func cacheKey(agencyID, residenceID int64) string {
	return fmt.Sprintf("availability:%d:%d", agencyID, residenceID)
}

func (c *Cache) Get(ctx context.Context, agencyID, residenceID int64) (*ResidenceCalendar, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(agencyID, residenceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "error", err)
		}
		return nil, false
	}
	var cal ResidenceCalendar
	if err := json.Unmarshal(raw, &cal); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "error", err)
		c.rdb.Del(ctx, cacheKey(agencyID, residenceID))
		return nil, false
	}
	return &cal, true
}

func (c *Cache) Set(ctx context.Context, agencyID, residenceID int64, cal *ResidenceCalendar) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(cal)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(agencyID, residenceID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

// Invalidate drops the cached calendar; called after any write that changes
// the residence's booking load or its agents' hours.
func (c *Cache) Invalidate(ctx context.Context, agencyID, residenceID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(agencyID, residenceID)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", "error", err)
	}
}
