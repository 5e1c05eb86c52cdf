package repository

import (
	"context"
	"time"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *models.RoomActivity) error
	ListSince(ctx context.Context, roomID int64, since time.Time) ([]models.RoomActivity, error)
	CountByTypeSince(ctx context.Context, roomID int64, since time.Time) (map[string]int64, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.RoomActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) ListSince(ctx context.Context, roomID int64, since time.Time) ([]models.RoomActivity, error) {
	var activities []models.RoomActivity
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND created_at >= ?", roomID, since).
		Order("created_at DESC").
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) CountByTypeSince(ctx context.Context, roomID int64, since time.Time) (map[string]int64, error) {
	type typeCount struct {
		ActivityType string
		Count        int64
	}
	var rows []typeCount
	err := r.db.WithContext(ctx).Model(&models.RoomActivity{}).
		Select("activity_type, COUNT(*) as count").
		Where("room_id = ? AND created_at >= ?", roomID, since).
		Group("activity_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ActivityType] = row.Count
	}
	return counts, nil
}

func (r *activityRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.RoomActivity{})
	return result.RowsAffected, result.Error
}
