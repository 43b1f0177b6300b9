package claimlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormLocker(t *testing.T) {
	db := testutil.NewDB(t)
	locker := NewGormLocker(db, logrus.New())
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, 1, "alice", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, 1, "bob", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must reject a second owner")

	// Other tokens are independent
	ok, err = locker.Acquire(ctx, 2, "bob", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, locker.Release(ctx, 1, "bob"), ErrNotHeld)
	require.NoError(t, locker.Release(ctx, 1, "alice"))

	ok, err = locker.Acquire(ctx, 1, "bob", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGormLocker_ExpiredLockIsReclaimed(t *testing.T) {
	db := testutil.NewDB(t)
	locker := NewGormLocker(db, logrus.New())
	ctx := context.Background()

	base := time.Now().UTC()
	locker.now = func() time.Time { return base }

	ok, err := locker.Acquire(ctx, 1, "crashed", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	locker.now = func() time.Time { return base.Add(2 * time.Minute) }
	ok, err = locker.Acquire(ctx, 1, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	var lock models.ClaimLock
	require.NoError(t, db.First(&lock, "token_id = ?", 1).Error)
	assert.Equal(t, "next", lock.Owner)

	// The crashed holder cannot release the new owner's lock
	assert.ErrorIs(t, locker.Release(ctx, 1, "crashed"), ErrNotHeld)
}

func TestGormLocker_Sweep(t *testing.T) {
	db := testutil.NewDB(t)
	locker := NewGormLocker(db, logrus.New())
	ctx := context.Background()

	base := time.Now().UTC()
	locker.now = func() time.Time { return base }
	for id := uint(1); id <= 3; id++ {
		_, err := locker.Acquire(ctx, id, "owner", time.Duration(id)*time.Minute)
		require.NoError(t, err)
	}

	locker.now = func() time.Time { return base.Add(150 * time.Second) }
	n, err := locker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var remaining int64
	db.Model(&models.ClaimLock{}).Count(&remaining)
	assert.Equal(t, int64(1), remaining)
}

func TestGormLocker_StartStop(t *testing.T) {
	locker := NewGormLocker(testutil.NewDB(t), logrus.New())
	locker.Start(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	locker.Stop()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewRedisLocker(client)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, 7, "alice", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, 7, "bob", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, locker.Release(ctx, 7, "bob"), ErrNotHeld)
	require.NoError(t, locker.Release(ctx, 7, "alice"))
	assert.False(t, mr.Exists("launchpad:claimlock:7"))

	// TTL expiry frees the lock
	ok, err = locker.Acquire(ctx, 7, "bob", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)

	ok, err = locker.Acquire(ctx, 7, "carol", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
