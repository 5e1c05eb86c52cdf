package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"stashhub/internal/chat/models"
)

// RoomStats is the cached per-room counter set.
type RoomStats struct {
	UserCount    int64 `json:"user_count"`
	OnlineCount  int64 `json:"online_count"`
	MessageCount int64 `json:"message_count"`
}

// MessagePage is one cached page of room history.
type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Total    int64            `json:"total"`
}

// Layer implements the read-through / invalidate-on-write caches over a
// Store. Store failures are logged and degrade to the loader; they never
// fail the caller, because the persistence store is always ground truth.
type Layer struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewLayer(store Store, ttl time.Duration, logger *slog.Logger) *Layer {
	return &Layer{store: store, ttl: ttl, logger: logger}
}

// readThrough consults the cache first and recomputes on miss.
func readThrough[T any](ctx context.Context, l *Layer, key string, load func() (T, error)) (T, error) {
	var zero T

	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache read failed, falling back to source", "key", key, "error", err)
	} else if ok {
		var cached T
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		l.logger.Warn("cache entry corrupt, recomputing", "key", key)
	}

	fresh, err := load()
	if err != nil {
		return zero, err
	}

	if encoded, err := json.Marshal(fresh); err == nil {
		if err := l.store.Set(ctx, key, string(encoded), l.ttl); err != nil {
			l.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return fresh, nil
}

func (l *Layer) RoomList(ctx context.Context, load func() ([]models.Room, error)) ([]models.Room, error) {
	return readThrough(ctx, l, RoomListKey(), load)
}

func (l *Layer) RoomStats(ctx context.Context, roomID int64, load func() (*RoomStats, error)) (*RoomStats, error) {
	return readThrough(ctx, l, RoomStatsKey(roomID), load)
}

func (l *Layer) OnlineUsers(ctx context.Context, roomID int64, load func() ([]models.RoomMember, error)) ([]models.RoomMember, error) {
	return readThrough(ctx, l, OnlineUsersKey(roomID), load)
}

// MessagePage caches one page of history per (page, pageSize) pair so
// requests with different page sizes never share an entry.
func (l *Layer) MessagePage(ctx context.Context, roomID int64, page, pageSize int, load func() (*MessagePage, error)) (*MessagePage, error) {
	return readThrough(ctx, l, MessagePageKey(roomID, page, pageSize), load)
}

func (l *Layer) Presence(ctx context.Context, userID string, roomID int64, load func() (*models.RoomMember, error)) (*models.RoomMember, error) {
	return readThrough(ctx, l, PresenceKey(userID, roomID), load)
}

func (l *Layer) InvalidateRoomList(ctx context.Context) {
	l.delete(ctx, RoomListKey())
}

func (l *Layer) InvalidateRoomStats(ctx context.Context, roomID int64) {
	l.delete(ctx, RoomStatsKey(roomID))
}

func (l *Layer) InvalidateOnlineUsers(ctx context.Context, roomID int64) {
	l.delete(ctx, OnlineUsersKey(roomID))
}

func (l *Layer) InvalidateMessagePages(ctx context.Context, roomID int64) {
	if err := l.store.DeleteByPattern(ctx, MessagePagePattern(roomID)); err != nil {
		l.logger.Warn("cache invalidation failed", "pattern", MessagePagePattern(roomID), "error", err)
	}
}

func (l *Layer) InvalidatePresence(ctx context.Context, userID string, roomID int64) {
	l.delete(ctx, PresenceKey(userID, roomID))
}

// InvalidateRoomPresence drops every per-user presence entry for a room,
// used when the room itself goes away.
func (l *Layer) InvalidateRoomPresence(ctx context.Context, roomID int64) {
	if err := l.store.DeleteByPattern(ctx, PresencePattern(roomID)); err != nil {
		l.logger.Warn("cache invalidation failed", "pattern", PresencePattern(roomID), "error", err)
	}
}

func (l *Layer) delete(ctx context.Context, keys ...string) {
	if err := l.store.Delete(ctx, keys...); err != nil {
		l.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
