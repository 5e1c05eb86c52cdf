package models

import "time"

// RoomMember is the membership row linking one user to one room.
// It carries both presence state (is_online, last_seen_at) and the two
// independent moderation flags. A user can be muted and banned at the
// same time; clearing one never touches the other.
type RoomMember struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID int64  `gorm:"not null;uniqueIndex:idx_room_members_room_user" json:"room_id"`
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_room_members_room_user" json:"user_id"`

	IsOnline   bool       `gorm:"default:false;not null" json:"is_online"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	IsMuted    bool       `gorm:"default:false;not null" json:"is_muted"`
	MutedUntil *time.Time `json:"muted_until,omitempty"` // nil while muted = permanent
	MutedBy    *string    `gorm:"type:uuid" json:"muted_by,omitempty"`

	IsBanned    bool       `gorm:"default:false;not null" json:"is_banned"`
	BannedUntil *time.Time `json:"banned_until,omitempty"` // nil while banned = permanent
	BannedBy    *string    `gorm:"type:uuid" json:"banned_by,omitempty"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room *Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (RoomMember) TableName() string {
	return "chat_room_members"
}

// MuteExpired reports whether a timed mute has lapsed. Permanent mutes
// (nil MutedUntil) never expire.
func (m *RoomMember) MuteExpired(now time.Time) bool {
	return m.IsMuted && m.MutedUntil != nil && m.MutedUntil.Before(now)
}

// BanExpired mirrors MuteExpired for the ban flag.
func (m *RoomMember) BanExpired(now time.Time) bool {
	return m.IsBanned && m.BannedUntil != nil && m.BannedUntil.Before(now)
}
