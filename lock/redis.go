package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a keyed try-lock backed by SET NX.
type Redis struct {
	rdb    goredis.Cmdable
	ttl    time.Duration
	logger *zap.Logger

	// NewToken generates the owner token. Overridable in tests.
	NewToken func() string
}

func NewRedis(rdb goredis.Cmdable, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger.Named("lock"), NewToken: uuid.NewString}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := r.NewToken()
	ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
			r.logger.Warn("release lock failed, waiting for expiry",
				zap.String("key", key), zap.Duration("ttl", r.ttl), zap.Error(err))
		}
	}, true, nil
}
