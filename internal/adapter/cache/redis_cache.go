package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationWindow is how long a Forget blocks refills of the same
// order. It only has to outlast one ledger read.
const DefaultInvalidationWindow = 5 * time.Second

// RedisCache keeps order:status:<id> as a small hash of status and owner.
// Writers never store a status; they Forget and readers refill from the
// ledger. Forget also leaves order:status:<id>:inval behind so a reader that
// loaded the row before the change cannot put it back.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	window time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, window: DefaultInvalidationWindow}
}

// WithInvalidationWindow overrides DefaultInvalidationWindow.
func (r *RedisCache) WithInvalidationWindow(d time.Duration) *RedisCache {
	if d > 0 {
		r.window = d
	}
	return r
}

func statusKey(orderID int64) string {
	return "order:status:" + strconv.FormatInt(orderID, 10)
}

func invalKey(orderID int64) string { return statusKey(orderID) + ":inval" }

// KEYS[1] entry, KEYS[2] invalidation marker; ARGV status, owner, ttl ms.
var fillScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'owner', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

func (r *RedisCache) FillStatus(ctx context.Context, orderID int64, cs usecase.CachedStatus) error {
	keys := []string{statusKey(orderID), invalKey(orderID)}
	return fillScript.Run(ctx, r.rdb, keys, cs.Status, cs.OwnerID, r.ttl.Milliseconds()).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID int64) (usecase.CachedStatus, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, statusKey(orderID)).Result()
	if err != nil {
		return usecase.CachedStatus{}, false, err
	}
	st, ok := vals["status"]
	if !ok {
		return usecase.CachedStatus{}, false, nil
	}
	owner, err := strconv.ParseInt(vals["owner"], 10, 64)
	if err != nil {
		// entry without a usable owner cannot be authorized; treat as a miss
		return usecase.CachedStatus{}, false, nil
	}
	return usecase.CachedStatus{OwnerID: owner, Status: st}, true, nil
}

func (r *RedisCache) Forget(ctx context.Context, orderID int64) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, statusKey(orderID))
		p.Set(ctx, invalKey(orderID), "1", r.window)
		return nil
	})
	return err
}

var _ usecase.OrderCache = (*RedisCache)(nil)
