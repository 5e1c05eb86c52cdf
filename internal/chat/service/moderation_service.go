package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"gorm.io/gorm"
)

// ModerationService owns mute/ban state, the moderator permission gate
// for sending, and the append-only audit trail.
type ModerationService interface {
	Mute(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) error
	Unmute(ctx context.Context, roomID int64, moderatorID, targetID string) error
	Ban(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) error
	Unban(ctx context.Context, roomID int64, moderatorID, targetID string) error

	// CheckCanSend returns nil when the user may post, an
	// *AuthorizationError when muted/banned/not-a-member. Moderators
	// bypass mute and ban checks entirely. Expired restrictions are
	// cleared here, at read time.
	CheckCanSend(ctx context.Context, room *models.Room, userID string) error

	IsMuted(ctx context.Context, roomID int64, userID string) (bool, *time.Time, error)
	IsBanned(ctx context.Context, roomID int64, userID string) (bool, *time.Time, error)

	Actions(ctx context.Context, roomID int64, filter repository.ModerationFilter, page, pageSize int) (*dto.PaginatedModerationResponse, error)
	SweepExpired(ctx context.Context) (int64, int64, error)
}

type moderationService struct {
	rooms      repository.RoomRepository
	members    repository.MemberRepository
	moderation repository.ModerationRepository
	authorizer Authorizer
	caches     *cache.Layer
	gateway    broadcast.Gateway
	logger     *slog.Logger
	now        func() time.Time
}

func NewModerationService(
	rooms repository.RoomRepository,
	members repository.MemberRepository,
	moderation repository.ModerationRepository,
	authorizer Authorizer,
	caches *cache.Layer,
	gateway broadcast.Gateway,
	logger *slog.Logger,
) ModerationService {
	return &moderationService{
		rooms:      rooms,
		members:    members,
		moderation: moderation,
		authorizer: authorizer,
		caches:     caches,
		gateway:    gateway,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *moderationService) Mute(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) error {
	room, until, err := s.authorizeAction(ctx, roomID, moderatorID, targetID, req)
	if err != nil {
		return err
	}

	rows, err := s.members.ApplyMute(ctx, roomID, targetID, moderatorID, until)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotMember
	}

	s.invalidateMember(ctx, roomID, targetID)
	s.audit(ctx, room.ID, moderatorID, targetID, models.ActionMuteUser, req.Reason, req.DurationMinutes)
	s.publishModeration(ctx, broadcast.EventUserMuted, room.ID, targetID, moderatorID, req, until)
	return nil
}

func (s *moderationService) Unmute(ctx context.Context, roomID int64, moderatorID, targetID string) error {
	room, _, err := s.authorizeAction(ctx, roomID, moderatorID, targetID, nil)
	if err != nil {
		return err
	}

	rows, err := s.members.ClearMute(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotMember
	}

	s.invalidateMember(ctx, roomID, targetID)
	s.audit(ctx, room.ID, moderatorID, targetID, models.ActionUnmuteUser, "", nil)
	s.publishModeration(ctx, broadcast.EventUserUnmuted, room.ID, targetID, moderatorID, nil, nil)
	return nil
}

func (s *moderationService) Ban(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) error {
	room, until, err := s.authorizeAction(ctx, roomID, moderatorID, targetID, req)
	if err != nil {
		return err
	}

	rows, err := s.members.ApplyBan(ctx, roomID, targetID, moderatorID, until)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotMember
	}

	// A ban ejects the user, so the online roster changes too.
	s.invalidateMember(ctx, roomID, targetID)
	s.caches.InvalidateRoomStats(ctx, roomID)
	s.audit(ctx, room.ID, moderatorID, targetID, models.ActionBanUser, req.Reason, req.DurationMinutes)
	s.publishModeration(ctx, broadcast.EventUserBanned, room.ID, targetID, moderatorID, req, until)
	return nil
}

func (s *moderationService) Unban(ctx context.Context, roomID int64, moderatorID, targetID string) error {
	room, _, err := s.authorizeAction(ctx, roomID, moderatorID, targetID, nil)
	if err != nil {
		return err
	}

	rows, err := s.members.ClearBan(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotMember
	}

	s.invalidateMember(ctx, roomID, targetID)
	s.audit(ctx, room.ID, moderatorID, targetID, models.ActionUnbanUser, "", nil)
	s.publishModeration(ctx, broadcast.EventUserUnbanned, room.ID, targetID, moderatorID, nil, nil)
	return nil
}

func (s *moderationService) CheckCanSend(ctx context.Context, room *models.Room, userID string) error {
	canModerate, err := s.authorizer.CanModerate(ctx, room, userID)
	if err != nil {
		return err
	}
	if canModerate {
		return nil
	}

	member, err := s.members.Find(ctx, room.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &AuthorizationError{Reason: "you are not a member of this room"}
		}
		return err
	}

	member = s.refreshRestrictions(ctx, member)

	if member.IsBanned {
		return &AuthorizationError{Reason: "you are banned from this room", Until: member.BannedUntil}
	}
	if member.IsMuted {
		return &AuthorizationError{Reason: "you are muted in this room", Until: member.MutedUntil}
	}
	return nil
}

func (s *moderationService) IsMuted(ctx context.Context, roomID int64, userID string) (bool, *time.Time, error) {
	member, err := s.members.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrNotMember
		}
		return false, nil, err
	}
	member = s.refreshRestrictions(ctx, member)
	return member.IsMuted, member.MutedUntil, nil
}

func (s *moderationService) IsBanned(ctx context.Context, roomID int64, userID string) (bool, *time.Time, error) {
	member, err := s.members.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrNotMember
		}
		return false, nil, err
	}
	member = s.refreshRestrictions(ctx, member)
	return member.IsBanned, member.BannedUntil, nil
}

func (s *moderationService) Actions(ctx context.Context, roomID int64, filter repository.ModerationFilter, page, pageSize int) (*dto.PaginatedModerationResponse, error) {
	if _, err := s.lookupRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	actions, total, err := s.moderation.ListByRoom(ctx, roomID, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ModerationActionResponse, 0, len(actions))
	for i := range actions {
		responses = append(responses, *dto.FromModelToModerationResponse(&actions[i]))
	}
	return dto.NewPaginatedModerationResponse(responses, total, page, pageSize), nil
}

// SweepExpired clears every lapsed timed mute and ban in one pass each.
// Intended for the maintenance job; the read path already clears lazily.
func (s *moderationService) SweepExpired(ctx context.Context) (int64, int64, error) {
	now := s.now()

	mutes, err := s.members.ClearExpiredMutes(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	bans, err := s.members.ClearExpiredBans(ctx, now)
	if err != nil {
		return mutes, 0, err
	}

	if mutes > 0 || bans > 0 {
		s.logger.Info("expired restrictions cleared", "mutes", mutes, "bans", bans)
	}
	return mutes, bans, nil
}

// refreshRestrictions applies lazy expiry: a lapsed timed mute or ban is
// cleared in storage and on the in-memory copy before the caller looks at
// the flags. Clearing failures are logged; the stale row only means the
// user stays restricted until the next read.
func (s *moderationService) refreshRestrictions(ctx context.Context, member *models.RoomMember) *models.RoomMember {
	now := s.now()

	if member.MuteExpired(now) {
		if _, err := s.members.ClearMuteIfExpired(ctx, member.RoomID, member.UserID, now); err != nil {
			s.logger.Warn("failed to clear expired mute", "room_id", member.RoomID, "user_id", member.UserID, "error", err)
		} else {
			member.IsMuted = false
			member.MutedUntil = nil
			member.MutedBy = nil
			s.invalidateMember(ctx, member.RoomID, member.UserID)
		}
	}

	if member.BanExpired(now) {
		if _, err := s.members.ClearBanIfExpired(ctx, member.RoomID, member.UserID, now); err != nil {
			s.logger.Warn("failed to clear expired ban", "room_id", member.RoomID, "user_id", member.UserID, "error", err)
		} else {
			member.IsBanned = false
			member.BannedUntil = nil
			member.BannedBy = nil
			s.invalidateMember(ctx, member.RoomID, member.UserID)
		}
	}

	return member
}

// authorizeAction runs the shared checks for all four moderation verbs:
// room exists and is active, the actor may moderate it, and the actor is
// not targeting themselves. Returns the resolved expiry when req carries
// a duration.
func (s *moderationService) authorizeAction(ctx context.Context, roomID int64, moderatorID, targetID string, req *dto.ModerateUserDTO) (*models.Room, *time.Time, error) {
	room, err := s.lookupRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	if moderatorID == targetID {
		return nil, nil, &AuthorizationError{Reason: "moderators cannot moderate themselves"}
	}

	canModerate, err := s.authorizer.CanModerate(ctx, room, moderatorID)
	if err != nil {
		return nil, nil, err
	}
	if !canModerate {
		return nil, nil, &AuthorizationError{Reason: "you do not have moderator permissions in this room"}
	}

	var until *time.Time
	if req != nil && req.DurationMinutes != nil {
		t := s.now().Add(time.Duration(*req.DurationMinutes) * time.Minute)
		until = &t
	}
	return room, until, nil
}

func (s *moderationService) lookupRoom(ctx context.Context, roomID int64) (*models.Room, error) {
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

func (s *moderationService) invalidateMember(ctx context.Context, roomID int64, userID string) {
	s.caches.InvalidatePresence(ctx, userID, roomID)
	s.caches.InvalidateOnlineUsers(ctx, roomID)
}

// audit appends the action to the trail. Audit failures are logged, not
// propagated: the restriction itself already took effect.
func (s *moderationService) audit(ctx context.Context, roomID int64, moderatorID, targetID, actionType, reason string, durationMinutes *int) {
	action := &models.ModerationAction{
		RoomID:       roomID,
		ModeratorID:  moderatorID,
		TargetUserID: targetID,
		ActionType:   actionType,
		Reason:       reason,
		CreatedAt:    s.now(),
	}
	if durationMinutes != nil {
		if err := action.EncodeMetadata(map[string]string{"duration_minutes": strconv.Itoa(*durationMinutes)}); err != nil {
			s.logger.Warn("failed to encode moderation metadata", "error", err)
		}
	}
	if err := s.moderation.Create(ctx, action); err != nil {
		s.logger.Warn("failed to record moderation action",
			"room_id", roomID, "action", actionType, "target_user_id", targetID, "error", err)
	}
}

func (s *moderationService) publishModeration(ctx context.Context, event string, roomID int64, targetID, moderatorID string, req *dto.ModerateUserDTO, until *time.Time) {
	payload := broadcast.ModerationPayload{
		RoomID:      roomID,
		UserID:      targetID,
		ModeratorID: moderatorID,
		Until:       until,
	}
	if req != nil {
		payload.DurationMinutes = req.DurationMinutes
		payload.Reason = req.Reason
	}

	channel := broadcast.RoomChannel(roomID)
	if err := s.gateway.Publish(ctx, channel, event, payload); err != nil {
		s.logger.Warn("broadcast failed", "channel", channel, "event", event, "error", err)
	}
}
