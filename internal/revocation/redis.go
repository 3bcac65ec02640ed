package revocation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "revoked:"
	scanBatch        = 200
	// ttlSlack keeps the key around slightly past its logical expiry so that
	// the boundary check in isRevokedScript decides, not Redis eviction.
	ttlSlack = time.Second
)

const isRevokedScript = `
local exp = redis.call("GET", KEYS[1])
if not exp then
  return 0
end
if tonumber(ARGV[1]) <= tonumber(exp) then
  return 1
end
redis.call("DEL", KEYS[1])
return 0
`

var isRevokedLua = redis.NewScript(isRevokedScript)

// RedisRegistry keeps one key per revoked token holding its expiry in unix milliseconds.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisRegistry)

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRegistry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedisRegistry(client redis.UniversalClient, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{
		client: client,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRegistry) key(tokenID string) string {
	return r.prefix + tokenID
}

func (r *RedisRegistry) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	now := r.now()
	expiresAt = effectiveExpiry(expiresAt, now)
	if expiresAt.Before(now) {
		if err := r.client.Del(ctx, r.key(tokenID)).Err(); err != nil {
			return fmt.Errorf("revocation add: %w", err)
		}
		return nil
	}
	ttl := expiresAt.Sub(now) + ttlSlack
	if err := r.client.Set(ctx, r.key(tokenID), expiresAt.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("revocation add: %w", err)
	}
	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	res, err := isRevokedLua.Run(ctx, r.client, []string{r.key(tokenID)}, r.now().UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRegistry) ListActive(ctx context.Context) ([]string, error) {
	now := r.now().UnixMilli()
	active := make([]string, 0)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("revocation scan: %w", err)
		}
		if len(keys) > 0 {
			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("revocation scan: %w", err)
			}
			for i, raw := range values {
				expiresAt, ok := parseMillis(raw)
				if !ok || expiresAt <= now {
					continue
				}
				active = append(active, strings.TrimPrefix(keys[i], r.prefix))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(active)
	return dedupe(active), nil
}

// Ping reports whether the backing Redis answers.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func parseMillis(raw interface{}) (int64, bool) {
	str, ok := raw.(string)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// dedupe collapses repeats in a sorted slice; SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
