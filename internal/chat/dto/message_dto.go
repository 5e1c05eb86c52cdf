package dto

import (
	"time"

	"stashhub/internal/chat/models"
)

type SendMessageDTO struct {
	Text string `json:"text" binding:"required"`
	Type string `json:"type" binding:"omitempty,oneof=text system"`
}

type DeleteMessageDTO struct {
	Reason string `json:"reason" binding:"max=500"`
}

type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type MessageResponse struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	User      UserInfo  `json:"user"`
	Mentions  []string  `json:"mentions,omitempty"` // resolved usernames, first-occurrence order
}

type PaginatedMessageResponse struct {
	Messages   []MessageResponse `json:"messages"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func FromModelToUserInfo(user *models.User) UserInfo {
	if user == nil {
		return UserInfo{}
	}
	return UserInfo{ID: user.ID, Username: user.Username, Email: user.Email}
}

func FromModelToMessageResponse(message *models.Message) *MessageResponse {
	return &MessageResponse{
		ID:        message.ID,
		RoomID:    message.RoomID,
		UserID:    message.UserID,
		Text:      message.Text,
		Type:      message.Type,
		CreatedAt: message.CreatedAt,
		User:      FromModelToUserInfo(message.User),
	}
}

func NewPaginatedMessageResponse(messages []MessageResponse, total int64, page, pageSize int) *PaginatedMessageResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &PaginatedMessageResponse{
		Messages:   messages,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
