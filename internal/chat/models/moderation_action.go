package models

import (
	"encoding/json"
	"time"
)

const (
	ActionDeleteMessage = "delete_message"
	ActionMuteUser      = "mute_user"
	ActionUnmuteUser    = "unmute_user"
	ActionBanUser       = "ban_user"
	ActionUnbanUser     = "unban_user"
	ActionTimeoutUser   = "timeout_user"
	ActionContentFilter = "content_filter"
	ActionSpamDetection = "spam_detection"
	ActionReportMessage = "report_message"
)

// ModerationAction is the append-only audit row for moderation events.
// Rows are never updated or deleted.
type ModerationAction struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID       int64     `gorm:"not null;index:idx_moderation_actions_room_id" json:"room_id"`
	ModeratorID  string    `gorm:"type:uuid;not null" json:"moderator_id"`
	TargetUserID string    `gorm:"type:uuid;not null;index" json:"target_user_id"`
	MessageID    *int64    `json:"message_id,omitempty"`
	ActionType   string    `gorm:"not null;index" json:"action_type"`
	Reason       string    `json:"reason,omitempty"`
	Metadata     string    `gorm:"type:jsonb" json:"metadata,omitempty"` // opaque key-value blob
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Associations
	Moderator  *User `gorm:"foreignKey:ModeratorID" json:"moderator,omitempty"`
	TargetUser *User `gorm:"foreignKey:TargetUserID" json:"target_user,omitempty"`
}

func (ModerationAction) TableName() string {
	return "chat_moderation_actions"
}

// EncodeMetadata serializes the opaque metadata map onto the row.
func (a *ModerationAction) EncodeMetadata(meta map[string]string) error {
	if len(meta) == 0 {
		a.Metadata = ""
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	a.Metadata = string(raw)
	return nil
}
