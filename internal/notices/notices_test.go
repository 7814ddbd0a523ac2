package notices

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseInbox(t *testing.T, inbox Inbox) {
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		require.NoError(t, inbox.Push(ctx, "u1", Notice{Level: LevelInfo, Text: fmt.Sprintf("n%d", i)}))
	}
	require.NoError(t, inbox.Push(ctx, "u2", *Success("other")))

	got, err := inbox.Drain(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for idx, want := range []string{"n2", "n3", "n4"} {
		assert.Equal(t, want, got[idx].Text)
	}

	got, err = inbox.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = inbox.Drain(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, LevelSuccess, got[0].Level)
}

func TestRedisInbox(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	exerciseInbox(t, NewRedisInbox(rdb, 3))
}

func TestRedisInboxExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	inbox := NewRedisInbox(rdb, 3)

	require.NoError(t, inbox.Push(context.Background(), "u1", *Info("hi")))
	assert.Equal(t, TTL, s.TTL(key("u1")))
	s.FastForward(TTL)

	got, err := inbox.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryInbox(t *testing.T) {
	exerciseInbox(t, NewMemoryInbox(3))
}
