package models

import "time"

const (
	ActivityJoined      = "joined"
	ActivityLeft        = "left"
	ActivityMessageSent = "message_sent"
)

// RoomActivity is a timestamped, bounded-retention record of room events.
type RoomActivity struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID       int64     `gorm:"not null;index:idx_room_activities_room_id" json:"room_id"`
	UserID       string    `gorm:"type:uuid;not null" json:"user_id"`
	ActivityType string    `gorm:"not null" json:"activity_type"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (RoomActivity) TableName() string {
	return "chat_room_activities"
}
