package repository

import (
	"context"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, messageID int64) (*models.Message, error)
	DeleteByID(ctx context.Context, messageID int64) error
	ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]models.Message, int64, error)
	CountByRoom(ctx context.Context, roomID int64) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("id = ?", messageID).
		Preload("User").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) DeleteByID(ctx context.Context, messageID int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", messageID).Delete(&models.Message{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByRoom returns one page of room history, newest first.
func (r *messageRepository) ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]models.Message, int64, error) {
	var messages []models.Message
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("User").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *messageRepository) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}
