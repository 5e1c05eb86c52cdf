package dto

import (
	"time"

	"stashhub/internal/chat/models"
)

type ModerateUserDTO struct {
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=1"`
	Reason          string `json:"reason" binding:"max=500"`
}

type ModerationActionResponse struct {
	ID           int64     `json:"id"`
	RoomID       int64     `json:"room_id"`
	ModeratorID  string    `json:"moderator_id"`
	TargetUserID string    `json:"target_user_id"`
	MessageID    *int64    `json:"message_id,omitempty"`
	ActionType   string    `json:"action_type"`
	Reason       string    `json:"reason,omitempty"`
	Metadata     string    `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PaginatedModerationResponse struct {
	Actions    []ModerationActionResponse `json:"actions"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
	TotalPages int                        `json:"total_pages"`
}

func FromModelToModerationResponse(action *models.ModerationAction) *ModerationActionResponse {
	return &ModerationActionResponse{
		ID:           action.ID,
		RoomID:       action.RoomID,
		ModeratorID:  action.ModeratorID,
		TargetUserID: action.TargetUserID,
		MessageID:    action.MessageID,
		ActionType:   action.ActionType,
		Reason:       action.Reason,
		Metadata:     action.Metadata,
		CreatedAt:    action.CreatedAt,
	}
}

func NewPaginatedModerationResponse(actions []ModerationActionResponse, total int64, page, pageSize int) *PaginatedModerationResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &PaginatedModerationResponse{
		Actions:    actions,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

type ActivityReportResponse struct {
	Activities   []models.RoomActivity `json:"activities"`
	TotalCount   int64                 `json:"total_count"`
	CountsByType map[string]int64      `json:"counts_by_type"`
}
