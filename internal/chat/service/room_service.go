package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"gorm.io/gorm"
)

type RoomService interface {
	Create(ctx context.Context, creatorID string, req *dto.CreateRoomDTO) (*dto.RoomResponse, error)
	List(ctx context.Context, activeOnly bool) ([]dto.RoomResponse, error)
	Get(ctx context.Context, roomID int64) (*dto.RoomResponse, error)
	Stats(ctx context.Context, roomID int64) (*dto.RoomStatsResponse, error)
	SetActive(ctx context.Context, roomID int64, userID string, active bool) error
	Delete(ctx context.Context, roomID int64, userID string) error
}

type roomService struct {
	rooms      repository.RoomRepository
	members    repository.MemberRepository
	messages   repository.MessageRepository
	authorizer Authorizer
	caches     *cache.Layer
	logger     *slog.Logger
	now        func() time.Time
}

func NewRoomService(
	rooms repository.RoomRepository,
	members repository.MemberRepository,
	messages repository.MessageRepository,
	authorizer Authorizer,
	caches *cache.Layer,
	logger *slog.Logger,
) RoomService {
	return &roomService{
		rooms:      rooms,
		members:    members,
		messages:   messages,
		authorizer: authorizer,
		caches:     caches,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *roomService) Create(ctx context.Context, creatorID string, req *dto.CreateRoomDTO) (*dto.RoomResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Violations: []string{"room name must not be empty"}}
	}

	room := &models.Room{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   creatorID,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.caches.InvalidateRoomList(ctx)
	s.logger.Info("room created", "room_id", room.ID, "name", room.Name, "created_by", creatorID)
	return dto.FromModelToRoomResponse(room), nil
}

func (s *roomService) List(ctx context.Context, activeOnly bool) ([]dto.RoomResponse, error) {
	// Only the common active-only listing goes through the cache.
	if !activeOnly {
		rooms, err := s.rooms.List(ctx, false)
		if err != nil {
			return nil, err
		}
		return dto.FromModelsToRoomResponses(rooms), nil
	}

	rooms, err := s.caches.RoomList(ctx, func() ([]models.Room, error) {
		return s.rooms.List(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	return dto.FromModelsToRoomResponses(rooms), nil
}

func (s *roomService) Get(ctx context.Context, roomID int64) (*dto.RoomResponse, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return dto.FromModelToRoomResponse(room), nil
}

func (s *roomService) Stats(ctx context.Context, roomID int64) (*dto.RoomStatsResponse, error) {
	if _, err := s.Get(ctx, roomID); err != nil {
		return nil, err
	}

	stats, err := s.caches.RoomStats(ctx, roomID, func() (*cache.RoomStats, error) {
		userCount, err := s.members.CountByRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		onlineCount, err := s.members.CountOnlineByRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		messageCount, err := s.messages.CountByRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return &cache.RoomStats{
			UserCount:    userCount,
			OnlineCount:  onlineCount,
			MessageCount: messageCount,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.RoomStatsResponse{
		UserCount:    stats.UserCount,
		OnlineCount:  stats.OnlineCount,
		MessageCount: stats.MessageCount,
	}, nil
}

func (s *roomService) SetActive(ctx context.Context, roomID int64, userID string, active bool) error {
	if err := s.requireOwnerOrAdmin(ctx, roomID, userID); err != nil {
		return err
	}

	rows, err := s.rooms.SetActive(ctx, roomID, active)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	s.caches.InvalidateRoomList(ctx)
	s.caches.InvalidateRoomStats(ctx, roomID)
	return nil
}

func (s *roomService) Delete(ctx context.Context, roomID int64, userID string) error {
	if err := s.requireOwnerOrAdmin(ctx, roomID, userID); err != nil {
		return err
	}

	if err := s.rooms.Delete(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	s.caches.InvalidateRoomList(ctx)
	s.caches.InvalidateRoomStats(ctx, roomID)
	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidateMessagePages(ctx, roomID)
	s.caches.InvalidateRoomPresence(ctx, roomID)

	s.logger.Info("room deleted", "room_id", roomID, "deleted_by", userID)
	return nil
}

func (s *roomService) requireOwnerOrAdmin(ctx context.Context, roomID int64, userID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	allowed, err := s.authorizer.CanModerate(ctx, room, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return &AuthorizationError{Reason: "only the room owner or an admin can manage this room"}
	}
	return nil
}
