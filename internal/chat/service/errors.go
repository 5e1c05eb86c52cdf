package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomInactive    = errors.New("room is not active")
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("user is not a member of this room")
	ErrConflict        = errors.New("concurrent modification, please retry")
)

// ValidationError enumerates every violated rule, not just the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// AuthorizationError covers not-a-member, muted, banned, not-a-moderator
// and self-moderation rejections. Until carries the mute/ban expiry when
// one exists.
type AuthorizationError struct {
	Reason string
	Until  *time.Time
}

func (e *AuthorizationError) Error() string {
	if e.Until != nil {
		return fmt.Sprintf("%s (until %s)", e.Reason, e.Until.UTC().Format(time.RFC3339))
	}
	return e.Reason
}

// RateLimitError is returned when the fixed-window counter is exhausted.
type RateLimitError struct {
	Remaining int
	ResetIn   time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %d seconds", int(e.ResetIn.Seconds()))
}
