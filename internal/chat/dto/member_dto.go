package dto

import (
	"time"

	"stashhub/internal/chat/models"
)

type MemberResponse struct {
	RoomID      int64      `json:"room_id"`
	UserID      string     `json:"user_id"`
	Username    string     `json:"username,omitempty"`
	IsOnline    bool       `json:"is_online"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	IsMuted     bool       `json:"is_muted"`
	MutedUntil  *time.Time `json:"muted_until,omitempty"`
	IsBanned    bool       `json:"is_banned"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
}

func FromModelToMemberResponse(member *models.RoomMember) *MemberResponse {
	response := &MemberResponse{
		RoomID:      member.RoomID,
		UserID:      member.UserID,
		IsOnline:    member.IsOnline,
		JoinedAt:    member.JoinedAt,
		LastSeenAt:  member.LastSeenAt,
		IsMuted:     member.IsMuted,
		MutedUntil:  member.MutedUntil,
		IsBanned:    member.IsBanned,
		BannedUntil: member.BannedUntil,
	}
	if member.User != nil {
		response.Username = member.User.Username
	}
	return response
}

func FromModelsToMemberResponses(members []models.RoomMember) []MemberResponse {
	responses := make([]MemberResponse, 0, len(members))
	for i := range members {
		responses = append(responses, *FromModelToMemberResponse(&members[i]))
	}
	return responses
}
