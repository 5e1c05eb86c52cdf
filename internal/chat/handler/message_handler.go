package handler

import (
	"net/http"
	"strconv"

	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService service.MessageService
}

func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) RegisterRoutes(router *gin.RouterGroup) {
	messages := router.Group("/rooms/:room_id/messages")
	{
		messages.GET("", h.History)
		messages.POST("", h.Send)
		messages.DELETE("/:message_id", h.Delete)
	}
}

// Send runs the full send pipeline for one message
// POST /api/chat/rooms/:room_id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, []string{err.Error()}, nil)
		return
	}

	message, err := h.messageService.Send(c.Request.Context(), roomID, userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, message)
}

// Delete removes a message, author or moderator only
// DELETE /api/chat/rooms/:room_id/messages/:message_id
func (h *MessageHandler) Delete(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, []string{"invalid message ID"}, nil)
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	// Reason body is optional for author deletions.
	var req dto.DeleteMessageDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusUnprocessableEntity, []string{err.Error()}, nil)
			return
		}
	}

	if err := h.messageService.Delete(c.Request.Context(), roomID, messageID, userID, &req); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message_id": messageID, "deleted": true})
}

// History returns one page of room history, newest first
// GET /api/chat/rooms/:room_id/messages?page=1&page_size=50
func (h *MessageHandler) History(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	history, err := h.messageService.History(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}
