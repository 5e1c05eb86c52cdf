package service

import (
	"context"
	"time"

	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"
)

type ActivityService interface {
	Track(ctx context.Context, roomID int64, activityType, userID string) error
	Query(ctx context.Context, roomID int64, lookback time.Duration) (*dto.ActivityReportResponse, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type activityService struct {
	activities repository.ActivityRepository
	now        func() time.Time
}

func NewActivityService(activities repository.ActivityRepository) ActivityService {
	return &activityService{activities: activities, now: time.Now}
}

func (s *activityService) Track(ctx context.Context, roomID int64, activityType, userID string) error {
	return s.activities.Create(ctx, &models.RoomActivity{
		RoomID:       roomID,
		UserID:       userID,
		ActivityType: activityType,
		CreatedAt:    s.now(),
	})
}

func (s *activityService) Query(ctx context.Context, roomID int64, lookback time.Duration) (*dto.ActivityReportResponse, error) {
	since := s.now().Add(-lookback)

	activities, err := s.activities.ListSince(ctx, roomID, since)
	if err != nil {
		return nil, err
	}
	counts, err := s.activities.CountByTypeSince(ctx, roomID, since)
	if err != nil {
		return nil, err
	}

	return &dto.ActivityReportResponse{
		Activities:   activities,
		TotalCount:   int64(len(activities)),
		CountsByType: counts,
	}, nil
}

func (s *activityService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.activities.PruneOlderThan(ctx, s.now().Add(-retention))
}
