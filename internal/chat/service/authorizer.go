package service

import (
	"context"
	"errors"

	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"gorm.io/gorm"
)

// Authorizer decides whether a user may moderate a room. Moderators also
// bypass mute/ban checks when posting. Room owners and admins qualify.
type Authorizer interface {
	CanModerate(ctx context.Context, room *models.Room, userID string) (bool, error)
}

type roleAuthorizer struct {
	users repository.UserRepository
}

func NewAuthorizer(users repository.UserRepository) Authorizer {
	return &roleAuthorizer{users: users}
}

func (a *roleAuthorizer) CanModerate(ctx context.Context, room *models.Room, userID string) (bool, error) {
	if room.IsOwnedBy(userID) {
		return true, nil
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}
