package handler

import (
	"net/http"
	"strconv"

	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService service.RoomService
}

func NewRoomHandler(roomService service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// RegisterRoutes registers room CRUD routes. The parent group already
// carries the auth middleware.
func (h *RoomHandler) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms")
	{
		rooms.GET("", h.List)
		rooms.POST("", h.Create)
		rooms.GET("/:room_id", h.Get)
		rooms.GET("/:room_id/stats", h.Stats)
		rooms.PATCH("/:room_id/active", h.SetActive)
		rooms.DELETE("/:room_id", h.Delete)
	}
}

// Create creates a new chat room
// POST /api/chat/rooms
func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateRoomDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, []string{err.Error()}, nil)
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, room)
}

// List lists rooms, active only unless ?include_inactive=true
// GET /api/chat/rooms
func (h *RoomHandler) List(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	rooms, err := h.roomService.List(c.Request.Context(), !includeInactive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rooms)
}

// Get retrieves one room
// GET /api/chat/rooms/:room_id
func (h *RoomHandler) Get(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.roomService.Get(c.Request.Context(), roomID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, room)
}

// Stats returns the cached member/online/message counters
// GET /api/chat/rooms/:room_id/stats
func (h *RoomHandler) Stats(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	stats, err := h.roomService.Stats(c.Request.Context(), roomID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// SetActive toggles the room's active flag, owner or admin only
// PATCH /api/chat/rooms/:room_id/active
func (h *RoomHandler) SetActive(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, []string{err.Error()}, nil)
		return
	}

	if err := h.roomService.SetActive(c.Request.Context(), roomID, userID, *req.Active); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "active": *req.Active})
}

// Delete hard-deletes a room and everything in it, owner or admin only
// DELETE /api/chat/rooms/:room_id
func (h *RoomHandler) Delete(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.roomService.Delete(c.Request.Context(), roomID, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room_id": roomID, "deleted": true})
}

func roomIDParam(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, []string{"invalid room ID"}, nil)
		return 0, false
	}
	return roomID, true
}
