package broadcast

import (
	"time"

	"stashhub/internal/chat/models"
)

// Payload shapes, independent of transport serialization.

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func SummarizeUser(user *models.User) UserSummary {
	if user == nil {
		return UserSummary{}
	}
	return UserSummary{ID: user.ID, Name: user.Username, Email: user.Email}
}

type MessageBody struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"room_id"`
	UserID    string      `json:"user_id"`
	Text      string      `json:"text"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	User      UserSummary `json:"user"`
}

func MessageBodyFrom(message *models.Message) MessageBody {
	return MessageBody{
		ID:        message.ID,
		RoomID:    message.RoomID,
		UserID:    message.UserID,
		Text:      message.Text,
		Type:      message.Type,
		CreatedAt: message.CreatedAt,
		User:      SummarizeUser(message.User),
	}
}

type MessageSentPayload struct {
	Message MessageBody `json:"message"`
}

type MessageDeletedPayload struct {
	MessageID int64     `json:"message_id"`
	RoomID    int64     `json:"room_id"`
	DeletedBy string    `json:"deleted_by"`
	Reason    string    `json:"reason,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

type PresencePayload struct {
	User      UserSummary `json:"user"`
	RoomID    int64       `json:"room_id"`
	Timestamp time.Time   `json:"timestamp"`
}

type StatusChangedPayload struct {
	User      UserSummary `json:"user"`
	RoomID    int64       `json:"room_id"`
	IsOnline  bool        `json:"is_online"`
	Timestamp time.Time   `json:"timestamp"`
}

type ModerationPayload struct {
	RoomID          int64      `json:"room_id"`
	UserID          string     `json:"user_id"`
	ModeratorID     string     `json:"moderator_id"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Until           *time.Time `json:"until,omitempty"`
}

type MentionNotification struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"` // always "mention"
	Message       MessageBody `json:"message"`
	MentionedUser UserSummary `json:"mentioned_user"`
	CreatedAt     time.Time   `json:"created_at"`
}

type MentionPayload struct {
	Notification MentionNotification `json:"notification"`
}
