package models

import "time"

type Room struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `gorm:"type:uuid;not null;index" json:"created_by"`
	IsActive    bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Associations
	Creator *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}

func (Room) TableName() string {
	return "chat_rooms"
}

// IsOwnedBy reports whether userID created the room.
func (r *Room) IsOwnedBy(userID string) bool {
	return r.CreatedBy == userID
}
