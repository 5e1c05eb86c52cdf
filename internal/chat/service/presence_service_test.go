package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type presenceEnv struct {
	rooms    *fakeRoomRepo
	members  *fakeMemberRepo
	users    *fakeUserRepo
	activity *fakeActivityRepo
	store    *cache.MemoryStore
	gateway  *recorderGateway
	svc      *presenceService
	now      time.Time
}

func newPresenceEnv(t *testing.T) *presenceEnv {
	t.Helper()

	env := &presenceEnv{
		rooms:    newFakeRoomRepo(),
		members:  newFakeMemberRepo(),
		users:    newFakeUserRepo(),
		activity: newFakeActivityRepo(),
		store:    cache.NewMemoryStore(),
		gateway:  &recorderGateway{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	caches := cache.NewLayer(env.store, 5*time.Minute, testLogger())
	activityService := NewActivityService(env.activity)
	svc := NewPresenceService(env.rooms, env.members, env.users, activityService, caches, env.gateway, testLogger())
	env.svc = svc.(*presenceService)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *presenceEnv) addRoom(t *testing.T, name string, active bool) *models.Room {
	t.Helper()
	room := &models.Room{Name: name, CreatedBy: "owner-id", IsActive: active, CreatedAt: env.now}
	require.NoError(t, env.rooms.Create(context.Background(), room))
	return room
}

func (env *presenceEnv) addUser(id, username string) *models.User {
	user := &models.User{ID: id, Username: username, Email: username + "@example.com", Role: "user"}
	env.users.add(user)
	return user
}

func TestPresenceService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesMembership", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		member, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)
		assert.True(t, member.IsOnline)
		require.NotNil(t, member.LastSeenAt)
		assert.Equal(t, env.now, *member.LastSeenAt)

		events := env.gateway.eventsNamed(broadcast.EventUserJoined)
		require.Len(t, events, 1)
		assert.Equal(t, broadcast.RoomPresenceChannel(room.ID), events[0].Channel)
	})

	t.Run("SecondJoinIsIdempotent", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		first, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)

		env.now = env.now.Add(10 * time.Minute)
		second, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)

		assert.Equal(t, first.JoinedAt, second.JoinedAt)
		assert.True(t, second.IsOnline)
		require.NotNil(t, second.LastSeenAt)
		assert.Equal(t, env.now, *second.LastSeenAt)
	})

	t.Run("RoomNotFound", func(t *testing.T) {
		env := newPresenceEnv(t)
		env.addUser("u1", "alice")

		_, err := env.svc.Join(ctx, 99, "u1")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("InactiveRoomRejected", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "archived", false)
		env.addUser("u1", "alice")

		_, err := env.svc.Join(ctx, room.ID, "u1")
		assert.ErrorIs(t, err, ErrRoomInactive)
	})

	t.Run("CreateFailureSurfaces", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		// An infrastructure failure is not a lost join race and must not
		// be reported as a conflict.
		dbDown := errors.New("connection reset")
		env.members.createErr = dbDown

		_, err := env.svc.Join(ctx, room.ID, "u1")
		assert.ErrorIs(t, err, dbDown)
		assert.NotErrorIs(t, err, ErrConflict)
	})

	t.Run("LostRaceWithoutSurvivingRowIsConflict", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		env.members.createErr = gorm.ErrDuplicatedKey

		_, err := env.svc.Join(ctx, room.ID, "u1")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("UnknownUserRejected", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)

		_, err := env.svc.Join(ctx, room.ID, "ghost")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("InvalidatesOnlineUsersCache", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		// Warm the cache, then join and expect it gone.
		_, err := env.svc.OnlineUsers(ctx, room.ID)
		require.NoError(t, err)
		require.True(t, env.store.Has(cache.OnlineUsersKey(room.ID)))

		_, err = env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)
		assert.False(t, env.store.Has(cache.OnlineUsersKey(room.ID)))
	})
}

func TestPresenceService_LeaveAndHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("LeaveRemovesMembership", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		_, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)

		require.NoError(t, env.svc.Leave(ctx, room.ID, "u1"))
		_, err = env.members.Find(ctx, room.ID, "u1")
		assert.Error(t, err)

		events := env.gateway.eventsNamed(broadcast.EventUserLeft)
		assert.Len(t, events, 1)
	})

	t.Run("LeaveWithoutMembership", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		err := env.svc.Leave(ctx, room.ID, "u1")
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("HeartbeatRefreshesLastSeen", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		_, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)

		env.now = env.now.Add(3 * time.Minute)
		seenAt, err := env.svc.Heartbeat(ctx, room.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, env.now, seenAt)

		member, err := env.members.Find(ctx, room.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, env.now, *member.LastSeenAt)
	})

	t.Run("HeartbeatWithoutMembership", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)

		_, err := env.svc.Heartbeat(ctx, room.ID, "ghost")
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("MarkOfflineKeepsMembership", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		env.addUser("u1", "alice")

		_, err := env.svc.Join(ctx, room.ID, "u1")
		require.NoError(t, err)

		require.NoError(t, env.svc.MarkOffline(ctx, room.ID, "u1"))
		member, err := env.members.Find(ctx, room.ID, "u1")
		require.NoError(t, err)
		assert.False(t, member.IsOnline)

		events := env.gateway.eventsNamed(broadcast.EventUserStatusChanged)
		assert.Len(t, events, 1)
	})
}

func TestPresenceService_SweepInactive(t *testing.T) {
	ctx := context.Background()

	seed := func(env *presenceEnv, roomID int64, userID string, lastSeenAgo time.Duration, online bool) {
		seen := env.now.Add(-lastSeenAgo)
		env.members.members[memberKey(roomID, userID)] = &models.RoomMember{
			RoomID:     roomID,
			UserID:     userID,
			IsOnline:   online,
			JoinedAt:   env.now.Add(-time.Hour),
			LastSeenAt: &seen,
		}
	}

	t.Run("MarksOnlyStaleOnlineMembers", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)

		seed(env, room.ID, "fresh", 2*time.Minute, true)
		seed(env, room.ID, "stale1", 10*time.Minute, true)
		seed(env, room.ID, "stale2", 15*time.Minute, true)
		seed(env, room.ID, "already-offline", 30*time.Minute, false)

		count, err := env.svc.SweepInactive(ctx, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		fresh, _ := env.members.Find(ctx, room.ID, "fresh")
		assert.True(t, fresh.IsOnline)
		stale, _ := env.members.Find(ctx, room.ID, "stale1")
		assert.False(t, stale.IsOnline)
	})

	t.Run("NullLastSeenNeverSwept", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)

		env.members.members[memberKey(room.ID, "no-seen")] = &models.RoomMember{
			RoomID:   room.ID,
			UserID:   "no-seen",
			IsOnline: true,
			JoinedAt: env.now.Add(-24 * time.Hour),
		}

		count, err := env.svc.SweepInactive(ctx, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		member, _ := env.members.Find(ctx, room.ID, "no-seen")
		assert.True(t, member.IsOnline)
	})

	t.Run("InvalidatesAffectedRoomCaches", func(t *testing.T) {
		env := newPresenceEnv(t)
		room := env.addRoom(t, "general", true)
		seed(env, room.ID, "stale", 10*time.Minute, true)

		_, err := env.svc.OnlineUsers(ctx, room.ID)
		require.NoError(t, err)
		require.True(t, env.store.Has(cache.OnlineUsersKey(room.ID)))

		_, err = env.svc.SweepInactive(ctx, 5*time.Minute)
		require.NoError(t, err)
		assert.False(t, env.store.Has(cache.OnlineUsersKey(room.ID)))
	})
}

func TestPresenceService_OnlineUsersDegradesWithoutCache(t *testing.T) {
	env := newPresenceEnv(t)
	room := env.addRoom(t, "general", true)
	env.addUser("u1", "alice")

	_, err := env.svc.Join(context.Background(), room.ID, "u1")
	require.NoError(t, err)

	// Swap in a broken store; reads must still work off the repository.
	env.svc.caches = cache.NewLayer(failingStore{}, time.Minute, testLogger())

	members, err := env.svc.OnlineUsers(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].UserID)
}
