package handler

import (
	"net/http"

	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presenceService service.PresenceService
}

func NewPresenceHandler(presenceService service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

func (h *PresenceHandler) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms/:room_id")
	{
		rooms.POST("/join", h.Join)
		rooms.POST("/leave", h.Leave)
		rooms.POST("/heartbeat", h.Heartbeat)
		rooms.POST("/offline", h.MarkOffline)
		rooms.GET("/online", h.OnlineUsers)
	}
}

// Join adds the user to the room. Joining twice is fine and just
// refreshes presence.
// POST /api/chat/rooms/:room_id/join
func (h *PresenceHandler) Join(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	member, err := h.presenceService.Join(c.Request.Context(), roomID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, member)
}

// Leave removes the membership entirely
// POST /api/chat/rooms/:room_id/leave
func (h *PresenceHandler) Leave(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.presenceService.Leave(c.Request.Context(), roomID, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "left": true})
}

// Heartbeat refreshes last_seen_at and keeps the member online
// POST /api/chat/rooms/:room_id/heartbeat
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	seenAt, err := h.presenceService.Heartbeat(c.Request.Context(), roomID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "last_seen_at": seenAt})
}

// MarkOffline flips the member offline without leaving the room
// POST /api/chat/rooms/:room_id/offline
func (h *PresenceHandler) MarkOffline(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.presenceService.MarkOffline(c.Request.Context(), roomID, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "is_online": false})
}

// OnlineUsers lists the room's current online members
// GET /api/chat/rooms/:room_id/online
func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	members, err := h.presenceService.OnlineUsers(c.Request.Context(), roomID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, members)
}
