package repository

import (
	"context"
	"strings"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// FindByUsernames resolves usernames case-insensitively and returns a
	// map keyed by the lowercased username. Unknown names are simply absent.
	FindByUsernames(ctx context.Context, usernames []string) (map[string]*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsernames(ctx context.Context, usernames []string) (map[string]*models.User, error) {
	if len(usernames) == 0 {
		return map[string]*models.User{}, nil
	}

	lowered := make([]string, 0, len(usernames))
	for _, name := range usernames {
		lowered = append(lowered, strings.ToLower(name))
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) IN ?", lowered).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*models.User, len(users))
	for i := range users {
		resolved[strings.ToLower(users[i].Username)] = &users[i]
	}
	return resolved, nil
}
