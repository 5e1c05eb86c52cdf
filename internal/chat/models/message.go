package models

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// Message is immutable once written; the only mutation is a hard delete.
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    int64     `gorm:"not null;index:idx_chat_messages_room_id" json:"room_id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Text      string    `gorm:"not null" json:"text"`
	Type      string    `gorm:"default:'text';not null" json:"type"` // text | system
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room *Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (Message) TableName() string {
	return "chat_messages"
}
