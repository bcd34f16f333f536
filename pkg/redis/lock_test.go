package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "capture:PAY-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "capture:PAY-1")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = l.TryLock(ctx, "capture:PAY-2")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per name")

	unlock()
	assert.False(t, mr.Exists(LockKey("capture:PAY-1")))

	_, ok, err = l.TryLock(ctx, "capture:PAY-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockLeavesForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l := NewLocker(rdb, time.Second)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "job")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "job")
	require.NoError(t, err)
	require.True(t, ok)

	unlock()
	assert.True(t, mr.Exists(LockKey("job")), "stale unlock must not release the new holder")
}
