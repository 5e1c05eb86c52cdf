package repository

import (
	"context"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

// ModerationFilter narrows the audit query. Zero values mean "no filter".
type ModerationFilter struct {
	ActionType   string
	TargetUserID string
}

type ModerationRepository interface {
	Create(ctx context.Context, action *models.ModerationAction) error
	ListByRoom(ctx context.Context, roomID int64, filter ModerationFilter, page, pageSize int) ([]models.ModerationAction, int64, error)
}

type moderationRepository struct {
	db *gorm.DB
}

func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) Create(ctx context.Context, action *models.ModerationAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *moderationRepository) ListByRoom(ctx context.Context, roomID int64, filter ModerationFilter, page, pageSize int) ([]models.ModerationAction, int64, error) {
	var actions []models.ModerationAction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ModerationAction{}).Where("room_id = ?", roomID)
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.TargetUserID != "" {
		query = query.Where("target_user_id = ?", filter.TargetUserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Moderator").
		Preload("TargetUser").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&actions).Error
	if err != nil {
		return nil, 0, err
	}

	return actions, total, nil
}
