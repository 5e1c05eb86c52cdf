package handler

import (
	"errors"
	"net/http"

	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
)

// Every endpoint answers with the same envelope: {"success": bool,
// "data": ...} on the happy path, {"success": false, "errors": [...]}
// otherwise. Extra failure context (retry hints, expiries) rides in
// "meta".

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, errs []string, meta gin.H) {
	body := gin.H{"success": false, "errors": errs}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	c.JSON(status, body)
}

// respondServiceError maps the service error taxonomy onto HTTP codes:
// 422 validation, 403 authorization, 429 rate limit, 404 missing
// entities, 409 conflicts and 500 for everything infrastructural.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		respondError(c, http.StatusUnprocessableEntity, validationErr.Violations, nil)
		return
	}

	var authErr *service.AuthorizationError
	if errors.As(err, &authErr) {
		meta := gin.H{}
		if authErr.Until != nil {
			meta["until"] = authErr.Until
		}
		respondError(c, http.StatusForbidden, []string{authErr.Reason}, meta)
		return
	}

	var rateErr *service.RateLimitError
	if errors.As(err, &rateErr) {
		respondError(c, http.StatusTooManyRequests, []string{rateErr.Error()}, gin.H{
			"remaining":        rateErr.Remaining,
			"reset_in_seconds": int(rateErr.ResetIn.Seconds()),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrNotMember):
		respondError(c, http.StatusNotFound, []string{err.Error()}, nil)
	case errors.Is(err, service.ErrRoomInactive):
		respondError(c, http.StatusForbidden, []string{err.Error()}, nil)
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, []string{err.Error()}, nil)
	default:
		respondError(c, http.StatusInternalServerError, []string{"internal server error"}, nil)
	}
}

// currentUserID reads the authenticated user injected by the auth
// middleware. Missing means the route was wired without it.
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		respondError(c, http.StatusUnauthorized, []string{"user not authenticated"}, nil)
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		respondError(c, http.StatusUnauthorized, []string{"user not authenticated"}, nil)
		return "", false
	}
	return id, true
}
