package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func balanceKey(customerID uuid.UUID) string {
	return fmt.Sprintf("credit:balance:%s", customerID)
}

// cacheBalanceScript stores "<version>:<balance>" unless the key already
// holds the same or a newer version.
var cacheBalanceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local v = tonumber(string.match(cur, '^(%d+):'))
  if v and v >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// CacheBalance writes the balance seen at the given customer version. An
// older version never replaces a newer one.
func (r *Repository) CacheBalance(ctx context.Context, customerID uuid.UUID, bal decimal.Decimal, version uint64) error {
	if r.rdb == nil {
		return nil
	}
	return cacheBalanceScript.Run(ctx, r.rdb, []string{balanceKey(customerID)},
		strconv.FormatUint(version, 10),
		bal.StringFixed(2),
		strconv.FormatInt(r.balanceTTL.Milliseconds(), 10),
	).Err()
}

// GetCachedBalance reads Redis. A miss is reported as redis.Nil.
func (r *Repository) GetCachedBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	if r.rdb == nil {
		return decimal.Zero, redis.Nil
	}
	str, err := r.rdb.Get(ctx, balanceKey(customerID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	_, bal, ok := strings.Cut(str, ":")
	if !ok {
		return decimal.Zero, redis.Nil
	}
	return decimal.NewFromString(bal)
}

// InvalidateBalance drops the cached balance.
func (r *Repository) InvalidateBalance(ctx context.Context, customerID uuid.UUID) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(ctx, balanceKey(customerID)).Err()
}
