package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the lock only while it still holds our token, so an
// expired-then-reacquired lock belonging to someone else is left alone.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// Locker hands out short-lived named locks backed by SET NX PX.
type Locker struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewLocker(rdb *rd.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// TryLock acquires name without waiting. ok=false means someone else holds it.
// The returned unlock is safe to call once the lock has expired.
func (l *Locker) TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error) {
	key := LockKey(name)
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = l.rdb.Eval(ctx, luaReleaseIfMatch, []string{key}, token).Int()
	}, true, nil
}
