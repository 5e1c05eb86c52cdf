package cache

import "fmt"

// Cache key shapes. Rate-limit counters live under "ratelimit:" and are
// only ever cleaned up by TTL expiry.
func RoomListKey() string {
	return "rooms:list"
}

func RoomStatsKey(roomID int64) string {
	return fmt.Sprintf("room:stats:%d", roomID)
}

func OnlineUsersKey(roomID int64) string {
	return fmt.Sprintf("room:online:%d", roomID)
}

func MessagePageKey(roomID int64, page, pageSize int) string {
	return fmt.Sprintf("room:messages:%d:%d:%d", roomID, page, pageSize)
}

func MessagePagePattern(roomID int64) string {
	return fmt.Sprintf("room:messages:%d:*", roomID)
}

func PresenceKey(userID string, roomID int64) string {
	return fmt.Sprintf("presence:%s:%d", userID, roomID)
}

func PresencePattern(roomID int64) string {
	return fmt.Sprintf("presence:*:%d", roomID)
}

func RateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}
