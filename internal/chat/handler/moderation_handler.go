package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/repository"
	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ModerationHandler struct {
	moderationService service.ModerationService
	activityService   service.ActivityService
}

func NewModerationHandler(moderationService service.ModerationService, activityService service.ActivityService) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
		activityService:   activityService,
	}
}

func (h *ModerationHandler) RegisterRoutes(router *gin.RouterGroup) {
	moderation := router.Group("/rooms/:room_id")
	{
		moderation.POST("/mute/:user_id", h.Mute)
		moderation.DELETE("/mute/:user_id", h.Unmute)
		moderation.POST("/ban/:user_id", h.Ban)
		moderation.DELETE("/ban/:user_id", h.Unban)
		moderation.GET("/moderation-actions", h.Actions)
		moderation.GET("/activity", h.Activity)
	}
}

// Mute silences a user in the room, optionally for a limited time
// POST /api/chat/rooms/:room_id/mute/:user_id
func (h *ModerationHandler) Mute(c *gin.Context) {
	h.moderate(c, h.moderationService.Mute)
}

// Ban ejects a user from the room, optionally for a limited time
// POST /api/chat/rooms/:room_id/ban/:user_id
func (h *ModerationHandler) Ban(c *gin.Context) {
	h.moderate(c, h.moderationService.Ban)
}

// Unmute lifts a mute
// DELETE /api/chat/rooms/:room_id/mute/:user_id
func (h *ModerationHandler) Unmute(c *gin.Context) {
	h.lift(c, h.moderationService.Unmute)
}

// Unban lifts a ban
// DELETE /api/chat/rooms/:room_id/ban/:user_id
func (h *ModerationHandler) Unban(c *gin.Context) {
	h.lift(c, h.moderationService.Unban)
}

// Actions returns the room's moderation audit trail
// GET /api/chat/rooms/:room_id/moderation-actions?action_type=&target_user_id=&page=&page_size=
func (h *ModerationHandler) Actions(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := repository.ModerationFilter{
		ActionType:   c.Query("action_type"),
		TargetUserID: c.Query("target_user_id"),
	}

	actions, err := h.moderationService.Actions(c.Request.Context(), roomID, filter, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, actions)
}

// Activity reports recent room activity with per-type counts
// GET /api/chat/rooms/:room_id/activity?hours=24
func (h *ModerationHandler) Activity(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours < 1 || hours > 720 {
		hours = 24
	}

	report, err := h.activityService.Query(c.Request.Context(), roomID, time.Duration(hours)*time.Hour)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

func (h *ModerationHandler) moderate(c *gin.Context, apply func(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) error) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	targetID, ok := targetUserIDParam(c)
	if !ok {
		return
	}
	moderatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	// Mute/ban bodies are optional; an empty body means permanent with
	// no reason.
	var req dto.ModerateUserDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusUnprocessableEntity, []string{err.Error()}, nil)
			return
		}
	}

	if err := apply(c.Request.Context(), roomID, moderatorID, targetID, &req); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "user_id": targetID})
}

func (h *ModerationHandler) lift(c *gin.Context, clear func(ctx context.Context, roomID int64, moderatorID, targetID string) error) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	targetID, ok := targetUserIDParam(c)
	if !ok {
		return
	}
	moderatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := clear(c.Request.Context(), roomID, moderatorID, targetID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "user_id": targetID})
}

func targetUserIDParam(c *gin.Context) (string, bool) {
	targetID := c.Param("user_id")
	if _, err := uuid.Parse(targetID); err != nil {
		respondError(c, http.StatusBadRequest, []string{"invalid user ID"}, nil)
		return "", false
	}
	return targetID, true
}
