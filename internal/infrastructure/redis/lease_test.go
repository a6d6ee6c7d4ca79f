package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "push-dispatch:batch-lease"

func newTestLease(t *testing.T, ttl time.Duration) (*Lease, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewLease(context.Background(), "redis://"+mr.Addr(), testKey, ttl)
	require.NoError(t, err)
	return l, mr
}

func TestAcquire_SecondOwnerIsRefused(t *testing.T) {
	l, mr := newTestLease(t, time.Minute)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "run-2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got)
	assert.Equal(t, time.Minute, mr.TTL(testKey))
}

func TestRelease_NonOwnerIsNoop(t *testing.T) {
	l, mr := newTestLease(t, time.Minute)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "run-2"))
	assert.True(t, mr.Exists(testKey))

	require.NoError(t, l.Release(ctx, "run-1"))
	assert.False(t, mr.Exists(testKey))

	ok, err = l.Acquire(ctx, "run-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_WithoutLeaseIsNoop(t *testing.T) {
	l, _ := newTestLease(t, time.Minute)
	assert.NoError(t, l.Release(context.Background(), "run-1"))
}

func TestAcquire_ExpiredLeaseCanBeTaken(t *testing.T) {
	l, mr := newTestLease(t, time.Minute)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = l.Acquire(ctx, "run-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquire_ServerDown(t *testing.T) {
	l, mr := newTestLease(t, time.Minute)
	mr.Close()

	_, err := l.Acquire(context.Background(), "run-1")
	assert.ErrorContains(t, err, "acquire lease")
}

func TestNewLease_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewLease(context.Background(), "redis://"+addr, testKey, time.Minute)
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestNewLease_BadURL(t *testing.T) {
	_, err := NewLease(context.Background(), "http://nope", testKey, time.Minute)
	assert.ErrorContains(t, err, "parse redis url")
}
