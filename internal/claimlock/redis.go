package claimlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still holds the caller's owner id
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker stores locks as keys with a PX expiry
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a redis-backed locker
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "launchpad:claimlock:"}
}

func (l *RedisLocker) key(tokenID uint) string {
	return fmt.Sprintf("%s%d", l.prefix, tokenID)
}

func (l *RedisLocker) Acquire(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.key(tokenID), owner, ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, tokenID uint, owner string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(tokenID)}, owner).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
