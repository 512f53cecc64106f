package redis

import (
	"Parley/internal/model"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTypingRepoRoundTrip(t *testing.T) {
	_, rdb := newTestClient(t)
	repo := NewTypingRepo(rdb)
	ctx := context.Background()

	state, err := repo.GetTyping(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, repo.SetTyping(ctx, &model.TypingState{
		ConversationID: 7, UserID: "user_a", IsTyping: true, UpdatedAt: 1000,
	}))
	state, err = repo.GetTyping(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "user_a", state.UserID)
	assert.True(t, state.IsTyping)
	assert.Equal(t, int64(1000), state.UpdatedAt)

	// 后写覆盖前写
	require.NoError(t, repo.SetTyping(ctx, &model.TypingState{
		ConversationID: 7, UserID: "user_b", IsTyping: false, UpdatedAt: 1500,
	}))
	state, err = repo.GetTyping(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "user_b", state.UserID)
	assert.False(t, state.IsTyping)
	assert.Equal(t, int64(1500), state.UpdatedAt)
}

func TestTypingRepoSetsHousekeepingTTL(t *testing.T) {
	mr, rdb := newTestClient(t)
	repo := NewTypingRepo(rdb)

	require.NoError(t, repo.SetTyping(context.Background(), &model.TypingState{
		ConversationID: 1, UserID: "u", IsTyping: true, UpdatedAt: 1,
	}))
	assert.Equal(t, typingHousekeepingTTL, mr.TTL(typingKey(1)))
}

func TestSessionCounter(t *testing.T) {
	_, rdb := newTestClient(t)
	counter := NewSessionCounter(rdb)
	ctx := context.Background()

	n, err := counter.Acquire(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = counter.Acquire(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := counter.Release(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)

	left, err = counter.Release(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), left)

	// 计数丢失后多释放一次也不会变成负数
	left, err = counter.Release(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), left)
}

func TestPublisherFansOutToUserChannels(t *testing.T) {
	_, rdb := newTestClient(t)
	pub := NewPublisher(rdb)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, UserChannel(1), UserChannel(2))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.PublishToUsers(ctx, []uint64{1, 2}, []byte(`{"type":"typing"}`)))

	got := map[string]string{}
	ch := sub.Channel()
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got[msg.Channel] = msg.Payload
		case <-timeout:
			t.Fatalf("only received %d messages", len(got))
		}
	}
	assert.Equal(t, `{"type":"typing"}`, got[UserChannel(1)])
	assert.Equal(t, `{"type":"typing"}`, got[UserChannel(2)])
}
