package repository

import (
	"context"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, roomID int64) (*models.Room, error)
	List(ctx context.Context, activeOnly bool) ([]models.Room, error)
	SetActive(ctx context.Context, roomID int64, active bool) (int64, error)
	// Delete hard-deletes the room and cascades memberships, messages,
	// moderation actions and activity rows in one transaction.
	Delete(ctx context.Context, roomID int64) error
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) GetByID(ctx context.Context, roomID int64) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Where("id = ?", roomID).
		Preload("Creator").
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) List(ctx context.Context, activeOnly bool) ([]models.Room, error) {
	var rooms []models.Room
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) SetActive(ctx context.Context, roomID int64, active bool) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("is_active", active)
	return result.RowsAffected, result.Error
}

func (r *roomRepository) Delete(ctx context.Context, roomID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.ModerationAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomActivity{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", roomID).Delete(&models.Room{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
