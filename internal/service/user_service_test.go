package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/presence"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUserCreatesThenUpdates(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()

	id, err := e.userSvc.UpsertUser(ctx, &dto.IdentityDTO{ExternalID: "ext_a", Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	created := e.users.get(id)
	assert.True(t, created.IsOnline)
	assert.Equal(t, e.clock.Millis(), created.LastSeen)

	e.clock.Advance(5 * time.Second)
	avatar := "https://img.example.com/a.png"
	again, err := e.userSvc.UpsertUser(ctx, &dto.IdentityDTO{ExternalID: "ext_a", Name: "Alice B", Email: "ab@example.com", ImageURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	updated := e.users.get(id)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "ab@example.com", updated.Email)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, avatar, *updated.ImageURL)
	assert.Equal(t, e.clock.Millis(), updated.LastSeen)
}

func TestUpsertUserRejectsEmptyExternalID(t *testing.T) {
	e := newTestEnv()
	_, err := e.userSvc.UpsertUser(context.Background(), &dto.IdentityDTO{ExternalID: "  ", Name: "x"})
	assert.ErrorIs(t, err, ErrParamInvalid)
}

func TestUpsertUserIndexesIntoSearch(t *testing.T) {
	e := newTestEnv()
	index := &fakeUserIndex{}
	e.userSvc.userIndex = index

	alice := e.seedUser(t, "ext_a", "Alice")
	assert.Equal(t, []uint64{alice.ID}, index.indexed)
}

func TestSetOnlineStatusIsIdempotent(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	alice := e.seedUser(t, "ext_a", "Alice")

	e.clock.Advance(time.Second)
	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", true))
	e.clock.Advance(time.Second)
	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", true))

	got := e.users.get(alice.ID)
	assert.True(t, got.IsOnline)
	assert.Equal(t, e.clock.Millis(), got.LastSeen)
}

func TestSetOnlineStatusOfflinePreservesLastSeen(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	alice := e.seedUser(t, "ext_a", "Alice")
	before := e.users.get(alice.ID).LastSeen

	e.clock.Advance(10 * time.Second)
	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", false))

	got := e.users.get(alice.ID)
	assert.False(t, got.IsOnline)
	assert.Equal(t, before, got.LastSeen)
}

func TestSetOnlineStatusUnknownUser(t *testing.T) {
	e := newTestEnv()
	err := e.userSvc.SetOnlineStatus(context.Background(), "nobody", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetOnlineStatusFansOutOnlyOnTransition(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	alice := e.seedUser(t, "ext_a", "Alice")
	bob := e.seedUser(t, "ext_b", "Bob")
	e.directConversation(t, alice, bob)
	e.pub.events = nil

	// 稳定心跳不扇出
	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", true))
	assert.Empty(t, e.pub.ofType("presence"))

	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", false))
	events := e.pub.ofType("presence")
	require.Len(t, events, 1)
	assert.Equal(t, []uint64{bob.ID}, events[0].Users)

	var payload dto.PresenceEventDTO
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	assert.Equal(t, alice.ID, payload.UserID)
	assert.False(t, payload.IsOnline)

	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", false))
	assert.Len(t, e.pub.ofType("presence"), 1)

	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", true))
	assert.Len(t, e.pub.ofType("presence"), 2)
}

func TestSetOnlineStatusStaleFlagCountsAsOffline(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	alice := e.seedUser(t, "ext_a", "Alice")
	bob := e.seedUser(t, "ext_b", "Bob")
	e.directConversation(t, alice, bob)
	e.pub.events = nil

	// 进程被杀，标记仍为在线但心跳已过期
	e.clock.Advance(presence.OnlineThreshold + time.Second)
	require.NoError(t, e.userSvc.SetOnlineStatus(ctx, "ext_a", true))
	assert.Len(t, e.pub.ofType("presence"), 1)
}

func TestGetMeUsesLivenessPredicate(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	e.seedUser(t, "ext_a", "Alice")

	e.clock.Advance(presence.OnlineThreshold - time.Millisecond)
	me, err := e.userSvc.GetMe(ctx, "ext_a")
	require.NoError(t, err)
	assert.True(t, me.IsOnline)

	e.clock.Advance(time.Millisecond)
	me, err = e.userSvc.GetMe(ctx, "ext_a")
	require.NoError(t, err)
	assert.False(t, me.IsOnline)

	_, err = e.userSvc.GetMe(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListUsersExcludesCaller(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	e.seedUser(t, "ext_a", "Alice")
	e.seedUser(t, "ext_b", "Bob")
	e.seedUser(t, "ext_c", "Carol")

	users, err := e.userSvc.ListUsers(ctx, "ext_a")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[0].Name)
	assert.Equal(t, "Carol", users[1].Name)

	users, err = e.userSvc.ListUsers(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSearchUsersFallsBackToDatabase(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	e.seedUser(t, "ext_a", "Alice")
	e.seedUser(t, "ext_b", "Bob")
	e.seedUser(t, "ext_c", "Bobby")

	users, err := e.userSvc.SearchUsers(ctx, "ext_a", "BOB")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[0].Name)

	// 关键字为空等同于列表
	users, err = e.userSvc.SearchUsers(ctx, "ext_a", "")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// 调用方自己不出现在结果里
	users, err = e.userSvc.SearchUsers(ctx, "ext_b", "alice@")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ext_a", users[0].ExternalID)
}

func TestSearchUsersUsesIndexOrder(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	e.seedUser(t, "ext_a", "Alice")
	bob := e.seedUser(t, "ext_b", "Bob")
	carol := e.seedUser(t, "ext_c", "Carol")

	e.userSvc.userIndex = &fakeUserIndex{ids: []uint64{carol.ID, bob.ID, 999}}
	users, err := e.userSvc.SearchUsers(ctx, "ext_a", "o")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, carol.ID, users[0].ID)
	assert.Equal(t, bob.ID, users[1].ID)
}

func TestSearchUsersIndexFailureFallsBack(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	e.seedUser(t, "ext_a", "Alice")
	e.seedUser(t, "ext_b", "Bob")

	e.userSvc.userIndex = &fakeUserIndex{err: errors.New("es down")}
	users, err := e.userSvc.SearchUsers(ctx, "ext_a", "bob")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].Name)
}

func TestSweepStalePresenceMatchesPredicateBoundary(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	alice := e.seedUser(t, "ext_a", "Alice")
	e.clock.Advance(time.Second)
	bob := e.seedUser(t, "ext_b", "Bob")
	aliceSeen := e.users.get(alice.ID).LastSeen

	// Alice 恰好到达阈值，Bob 还差一秒
	e.clock.Advance(presence.OnlineThreshold - time.Second)
	n, err := e.userSvc.SweepStalePresence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := e.users.get(alice.ID)
	assert.False(t, got.IsOnline)
	assert.Equal(t, aliceSeen, got.LastSeen)
	assert.True(t, e.users.get(bob.ID).IsOnline)
}
