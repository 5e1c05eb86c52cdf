package broadcast

import (
	"context"
	"fmt"
)

// Event names carried on the wire.
const (
	EventMessageSent       = "message.sent"
	EventMessageDeleted    = "message.deleted"
	EventUserJoined        = "user.joined"
	EventUserLeft          = "user.left"
	EventUserStatusChanged = "user.status.changed"
	EventUserMuted         = "user.muted"
	EventUserUnmuted       = "user.unmuted"
	EventUserBanned        = "user.banned"
	EventUserUnbanned      = "user.unbanned"
	EventMention           = "mention.notification"
)

// Gateway publishes typed events to the external realtime transport.
// Publishing is fire-and-forget from the pipeline's perspective: failures
// are logged by callers but never roll back the triggering operation.
type Gateway interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// RoomChannel is the public room channel.
func RoomChannel(roomID int64) string {
	return fmt.Sprintf("chat.room.%d", roomID)
}

// RoomPresenceChannel carries join/leave/status-changed events.
func RoomPresenceChannel(roomID int64) string {
	return fmt.Sprintf("chat.room.%d.presence", roomID)
}

// UserChannel is the private per-user channel, mentions only.
func UserChannel(userID string) string {
	return fmt.Sprintf("user.%s.notifications", userID)
}
