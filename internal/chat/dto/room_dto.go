package dto

import (
	"time"

	"stashhub/internal/chat/models"
)

type CreateRoomDTO struct {
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"max=500"`
}

type RoomResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoomStatsResponse struct {
	UserCount    int64 `json:"user_count"`
	OnlineCount  int64 `json:"online_count"`
	MessageCount int64 `json:"message_count"`
}

func FromModelToRoomResponse(room *models.Room) *RoomResponse {
	return &RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatedBy:   room.CreatedBy,
		IsActive:    room.IsActive,
		CreatedAt:   room.CreatedAt,
	}
}

func FromModelsToRoomResponses(rooms []models.Room) []RoomResponse {
	responses := make([]RoomResponse, 0, len(rooms))
	for i := range rooms {
		responses = append(responses, *FromModelToRoomResponse(&rooms[i]))
	}
	return responses
}
