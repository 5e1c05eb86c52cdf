package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"gorm.io/gorm"
)

// PresenceService owns the room membership lifecycle: join, leave,
// heartbeat, offline marking and the inactivity sweep.
type PresenceService interface {
	Join(ctx context.Context, roomID int64, userID string) (*dto.MemberResponse, error)
	Leave(ctx context.Context, roomID int64, userID string) error
	Heartbeat(ctx context.Context, roomID int64, userID string) (time.Time, error)
	MarkOffline(ctx context.Context, roomID int64, userID string) error
	OnlineUsers(ctx context.Context, roomID int64) ([]dto.MemberResponse, error)
	SweepInactive(ctx context.Context, threshold time.Duration) (int64, error)
}

type presenceService struct {
	rooms    repository.RoomRepository
	members  repository.MemberRepository
	users    repository.UserRepository
	activity ActivityService
	caches   *cache.Layer
	gateway  broadcast.Gateway
	logger   *slog.Logger
	now      func() time.Time
}

func NewPresenceService(
	rooms repository.RoomRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	activity ActivityService,
	caches *cache.Layer,
	gateway broadcast.Gateway,
	logger *slog.Logger,
) PresenceService {
	return &presenceService{
		rooms:    rooms,
		members:  members,
		users:    users,
		activity: activity,
		caches:   caches,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
	}
}

// Join creates the membership row, or refreshes it when the user is
// already a member: the second join is a success, not an error.
func (s *presenceService) Join(ctx context.Context, roomID int64, userID string) (*dto.MemberResponse, error) {
	if _, err := s.activeRoom(ctx, roomID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.now()
	member, err := s.members.Find(ctx, roomID, userID)
	switch {
	case err == nil:
		// Already a member: flip online and refresh last_seen_at.
		if _, err := s.members.Touch(ctx, roomID, userID, now); err != nil {
			return nil, err
		}
		member.IsOnline = true
		member.LastSeenAt = &now
	case errors.Is(err, gorm.ErrRecordNotFound):
		member = &models.RoomMember{
			RoomID:     roomID,
			UserID:     userID,
			IsOnline:   true,
			JoinedAt:   now,
			LastSeenAt: &now,
			User:       user,
		}
		if err := s.members.Create(ctx, member); err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, err
			}
			// A concurrent join won the unique (room,user) race; fall back
			// to the idempotent path once.
			if rows, touchErr := s.members.Touch(ctx, roomID, userID, now); touchErr != nil || rows == 0 {
				return nil, ErrConflict
			}
		}
	default:
		return nil, err
	}

	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidateRoomStats(ctx, roomID)
	s.caches.InvalidatePresence(ctx, userID, roomID)

	s.publish(ctx, broadcast.RoomPresenceChannel(roomID), broadcast.EventUserJoined, broadcast.PresencePayload{
		User:      broadcast.SummarizeUser(user),
		RoomID:    roomID,
		Timestamp: now,
	})

	if err := s.activity.Track(ctx, roomID, models.ActivityJoined, userID); err != nil {
		s.logger.Warn("failed to track join activity", "room_id", roomID, "user_id", userID, "error", err)
	}

	return dto.FromModelToMemberResponse(member), nil
}

func (s *presenceService) Leave(ctx context.Context, roomID int64, userID string) error {
	if _, err := s.activeRoom(ctx, roomID); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.members.Delete(ctx, roomID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}

	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidateRoomStats(ctx, roomID)
	s.caches.InvalidatePresence(ctx, userID, roomID)

	s.publish(ctx, broadcast.RoomPresenceChannel(roomID), broadcast.EventUserLeft, broadcast.PresencePayload{
		User:      broadcast.SummarizeUser(user),
		RoomID:    roomID,
		Timestamp: s.now(),
	})

	if err := s.activity.Track(ctx, roomID, models.ActivityLeft, userID); err != nil {
		s.logger.Warn("failed to track leave activity", "room_id", roomID, "user_id", userID, "error", err)
	}
	return nil
}

func (s *presenceService) Heartbeat(ctx context.Context, roomID int64, userID string) (time.Time, error) {
	now := s.now()
	rows, err := s.members.Touch(ctx, roomID, userID, now)
	if err != nil {
		return time.Time{}, err
	}
	if rows == 0 {
		return time.Time{}, ErrNotMember
	}

	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidatePresence(ctx, userID, roomID)
	return now, nil
}

func (s *presenceService) MarkOffline(ctx context.Context, roomID int64, userID string) error {
	now := s.now()
	rows, err := s.members.MarkOffline(ctx, roomID, userID, now)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotMember
	}

	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidatePresence(ctx, userID, roomID)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		user = nil
	}
	s.publish(ctx, broadcast.RoomPresenceChannel(roomID), broadcast.EventUserStatusChanged, broadcast.StatusChangedPayload{
		User:      broadcast.SummarizeUser(user),
		RoomID:    roomID,
		IsOnline:  false,
		Timestamp: now,
	})
	return nil
}

func (s *presenceService) OnlineUsers(ctx context.Context, roomID int64) ([]dto.MemberResponse, error) {
	if _, err := s.activeRoom(ctx, roomID); err != nil {
		return nil, err
	}

	members, err := s.caches.OnlineUsers(ctx, roomID, func() ([]models.RoomMember, error) {
		return s.members.OnlineByRoom(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	return dto.FromModelsToMemberResponses(members), nil
}

// SweepInactive flips stale online members offline. Members whose
// last_seen_at is null are never considered inactive here.
func (s *presenceService) SweepInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := s.now().Add(-threshold)

	roomIDs, err := s.members.RoomsWithInactiveMembers(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	count, err := s.members.SweepInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, roomID := range roomIDs {
		s.caches.InvalidateOnlineUsers(ctx, roomID)
		s.caches.InvalidateRoomStats(ctx, roomID)
	}

	if count > 0 {
		s.logger.Info("inactivity sweep completed", "marked_offline", count, "rooms", len(roomIDs))
	}
	return count, nil
}

func (s *presenceService) activeRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}
	return room, nil
}

// publish is best-effort: broadcast failures never fail the operation.
func (s *presenceService) publish(ctx context.Context, channel, event string, payload any) {
	if err := s.gateway.Publish(ctx, channel, event, payload); err != nil {
		s.logger.Warn("broadcast failed", "channel", channel, "event", event, "error", err)
	}
}
