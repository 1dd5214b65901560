package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, strategy Strategy) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewManager(rdb, strategy), mr
}

func Test_Fixed_Window_Allows_Up_To_Limit(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t, &FixedWindowStrategy{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := manager.Allow(ctx, "limiter:1.2.3.4", 5, time.Minute)
		assert.NoError(err)
		assert.True(allowed)
	}

	allowed, err := manager.Allow(ctx, "limiter:1.2.3.4", 5, time.Minute)
	assert.NoError(err)
	assert.False(allowed)
}

func Test_Fixed_Window_Resets_After_Window(t *testing.T) {
	assert := require.New(t)
	manager, mr := newTestManager(t, &FixedWindowStrategy{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := manager.Allow(ctx, "limiter:reset", 3, time.Minute)
		assert.NoError(err)
	}
	allowed, err := manager.Allow(ctx, "limiter:reset", 3, time.Minute)
	assert.NoError(err)
	assert.False(allowed)

	mr.FastForward(61 * time.Second)

	allowed, err = manager.Allow(ctx, "limiter:reset", 3, time.Minute)
	assert.NoError(err)
	assert.True(allowed)
}

func Test_Fixed_Window_Keys_Are_Independent(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t, &FixedWindowStrategy{})
	ctx := context.Background()

	allowed, err := manager.Allow(ctx, "limiter:a", 1, time.Minute)
	assert.NoError(err)
	assert.True(allowed)

	allowed, err = manager.Allow(ctx, "limiter:a", 1, time.Minute)
	assert.NoError(err)
	assert.False(allowed)

	allowed, err = manager.Allow(ctx, "limiter:b", 1, time.Minute)
	assert.NoError(err)
	assert.True(allowed)
}

func Test_Token_Bucket_Allows_Burst_Up_To_Capacity(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t, &TokenBucketStrategy{})
	ctx := context.Background()

	// Full bucket allows a burst of capacity
	for i := 0; i < 4; i++ {
		allowed, err := manager.Allow(ctx, "limiter:bucket", 4, time.Second)
		assert.NoError(err)
		assert.True(allowed)
	}

	allowed, err := manager.Allow(ctx, "limiter:bucket", 4, time.Second)
	assert.NoError(err)
	assert.False(allowed)
}
