package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageService runs the send pipeline (permission, rate limit,
// validation, sanitize, mentions, persist, fan-out), message deletion
// and the cached history reads.
type MessageService interface {
	Send(ctx context.Context, roomID int64, userID string, req *dto.SendMessageDTO) (*dto.MessageResponse, error)
	Delete(ctx context.Context, roomID, messageID int64, userID string, req *dto.DeleteMessageDTO) error
	History(ctx context.Context, roomID int64, page, pageSize int) (*dto.PaginatedMessageResponse, error)
}

type messageService struct {
	rooms      repository.RoomRepository
	members    repository.MemberRepository
	messages   repository.MessageRepository
	users      repository.UserRepository
	audit      repository.ModerationRepository
	moderation ModerationService
	authorizer Authorizer
	activity   ActivityService
	caches     *cache.Layer
	limiter    *cache.RateLimiter
	gateway    broadcast.Gateway
	logger     *slog.Logger
	now        func() time.Time

	maxMessageLength int
	rateLimit        int
	rateWindow       time.Duration
}

func NewMessageService(
	rooms repository.RoomRepository,
	members repository.MemberRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	audit repository.ModerationRepository,
	moderation ModerationService,
	authorizer Authorizer,
	activity ActivityService,
	caches *cache.Layer,
	limiter *cache.RateLimiter,
	gateway broadcast.Gateway,
	logger *slog.Logger,
	maxMessageLength, rateLimit int,
	rateWindow time.Duration,
) MessageService {
	return &messageService{
		rooms:            rooms,
		members:          members,
		messages:         messages,
		users:            users,
		audit:            audit,
		moderation:       moderation,
		authorizer:       authorizer,
		activity:         activity,
		caches:           caches,
		limiter:          limiter,
		gateway:          gateway,
		logger:           logger,
		now:              time.Now,
		maxMessageLength: maxMessageLength,
		rateLimit:        rateLimit,
		rateWindow:       rateWindow,
	}
}

func (s *messageService) Send(ctx context.Context, roomID int64, userID string, req *dto.SendMessageDTO) (*dto.MessageResponse, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.members.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AuthorizationError{Reason: "you are not a member of this room"}
		}
		return nil, err
	}
	if !member.IsOnline {
		return nil, &AuthorizationError{Reason: "you must be online in this room to send messages"}
	}

	if err := s.moderation.CheckCanSend(ctx, room, userID); err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, roomID, userID); err != nil {
		return nil, err
	}

	if err := validateMessageText(req.Text, s.maxMessageLength); err != nil {
		return nil, err
	}

	text := SanitizeMessage(req.Text)
	if text == "" {
		return nil, &ValidationError{Violations: []string{"message text is empty after sanitization"}}
	}

	mentioned := s.resolveMentions(ctx, text)

	messageType := req.Type
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	now := s.now()
	message := &models.Message{
		RoomID:    roomID,
		UserID:    userID,
		Text:      text,
		Type:      messageType,
		CreatedAt: now,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	message.User = member.User

	// Sending counts as activity for the inactivity sweep.
	if _, err := s.members.Touch(ctx, roomID, userID, now); err != nil {
		s.logger.Warn("failed to refresh last_seen after send", "room_id", roomID, "user_id", userID, "error", err)
	}

	s.caches.InvalidateMessagePages(ctx, roomID)
	s.caches.InvalidateRoomStats(ctx, roomID)
	s.caches.InvalidateOnlineUsers(ctx, roomID)
	s.caches.InvalidatePresence(ctx, userID, roomID)

	s.publish(ctx, broadcast.RoomChannel(roomID), broadcast.EventMessageSent, broadcast.MessageSentPayload{
		Message: broadcast.MessageBodyFrom(message),
	})
	s.notifyMentions(ctx, message, mentioned)

	if err := s.activity.Track(ctx, roomID, models.ActivityMessageSent, userID); err != nil {
		s.logger.Warn("failed to track message activity", "room_id", roomID, "user_id", userID, "error", err)
	}

	response := dto.FromModelToMessageResponse(message)
	for _, user := range mentioned {
		response.Mentions = append(response.Mentions, user.Username)
	}
	return response, nil
}

func (s *messageService) Delete(ctx context.Context, roomID, messageID int64, userID string, req *dto.DeleteMessageDTO) error {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return err
	}

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if message.RoomID != roomID {
		return ErrMessageNotFound
	}

	isAuthor := message.UserID == userID
	isModerator := false
	if !isAuthor {
		isModerator, err = s.authorizer.CanModerate(ctx, room, userID)
		if err != nil {
			return err
		}
		if !isModerator {
			return &AuthorizationError{Reason: "only the author or a moderator can delete this message"}
		}
	}

	if err := s.messages.DeleteByID(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	// Only moderator deletions enter the audit trail; deleting your own
	// message is not a moderation act.
	if isModerator {
		reason := ""
		if req != nil {
			reason = req.Reason
		}
		action := &models.ModerationAction{
			RoomID:       roomID,
			ModeratorID:  userID,
			TargetUserID: message.UserID,
			MessageID:    &messageID,
			ActionType:   models.ActionDeleteMessage,
			Reason:       reason,
			CreatedAt:    s.now(),
		}
		if err := s.audit.Create(ctx, action); err != nil {
			s.logger.Warn("failed to record message deletion", "message_id", messageID, "error", err)
		}
	}

	s.caches.InvalidateMessagePages(ctx, roomID)
	s.caches.InvalidateRoomStats(ctx, roomID)

	reason := ""
	if req != nil {
		reason = req.Reason
	}
	s.publish(ctx, broadcast.RoomChannel(roomID), broadcast.EventMessageDeleted, broadcast.MessageDeletedPayload{
		MessageID: messageID,
		RoomID:    roomID,
		DeletedBy: userID,
		Reason:    reason,
		DeletedAt: s.now(),
	})
	return nil
}

func (s *messageService) History(ctx context.Context, roomID int64, page, pageSize int) (*dto.PaginatedMessageResponse, error) {
	if _, err := s.roomByID(ctx, roomID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	cached, err := s.caches.MessagePage(ctx, roomID, page, pageSize, func() (*cache.MessagePage, error) {
		messages, total, err := s.messages.ListByRoom(ctx, roomID, page, pageSize)
		if err != nil {
			return nil, err
		}
		return &cache.MessagePage{Messages: messages, Total: total}, nil
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.MessageResponse, 0, len(cached.Messages))
	for i := range cached.Messages {
		responses = append(responses, *dto.FromModelToMessageResponse(&cached.Messages[i]))
	}
	return dto.NewPaginatedMessageResponse(responses, cached.Total, page, pageSize), nil
}

// checkRateLimit applies the fixed-window counter. When the counter store
// itself is down the send is admitted: losing rate limiting is preferable
// to losing chat.
func (s *messageService) checkRateLimit(ctx context.Context, roomID int64, userID string) error {
	key := fmt.Sprintf("send_message:%s:%d", userID, roomID)
	result, err := s.limiter.CheckAndIncrement(ctx, key, s.rateLimit, s.rateWindow)
	if err != nil {
		s.logger.Warn("rate limit check unavailable, admitting message", "key", key, "error", err)
		return nil
	}
	if !result.Allowed {
		return &RateLimitError{Remaining: result.Remaining, ResetIn: result.ResetIn}
	}
	return nil
}

// validateMessageText collects every violation instead of stopping at the
// first one.
func validateMessageText(text string, maxLength int) error {
	var violations []string
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		violations = append(violations, "message text must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxLength {
		violations = append(violations, fmt.Sprintf("message text must not exceed %d characters", maxLength))
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// resolveMentions maps @tokens in the sanitized text to real users.
// Unknown usernames are dropped silently. Resolution failures only cost
// the notifications, never the message.
func (s *messageService) resolveMentions(ctx context.Context, text string) []*models.User {
	tokens := ExtractMentionTokens(text)
	if len(tokens) == 0 {
		return nil
	}

	resolved, err := s.users.FindByUsernames(ctx, tokens)
	if err != nil {
		s.logger.Warn("failed to resolve mentions", "error", err)
		return nil
	}

	users := make([]*models.User, 0, len(tokens))
	for _, token := range tokens {
		if user, ok := resolved[strings.ToLower(token)]; ok {
			users = append(users, user)
		}
	}
	return users
}

// notifyMentions fans one notification per mentioned user out to their
// private channel and mirrors it on the room channel.
func (s *messageService) notifyMentions(ctx context.Context, message *models.Message, mentioned []*models.User) {
	body := broadcast.MessageBodyFrom(message)
	for _, user := range mentioned {
		notification := broadcast.MentionNotification{
			ID:            uuid.NewString(),
			Type:          "mention",
			Message:       body,
			MentionedUser: broadcast.SummarizeUser(user),
			CreatedAt:     s.now(),
		}
		payload := broadcast.MentionPayload{Notification: notification}
		s.publish(ctx, broadcast.UserChannel(user.ID), broadcast.EventMention, payload)
		s.publish(ctx, broadcast.RoomChannel(message.RoomID), broadcast.EventMention, payload)
	}
}

func (s *messageService) activeRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}
	return room, nil
}

func (s *messageService) roomByID(ctx context.Context, roomID int64) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *messageService) publish(ctx context.Context, channel, event string, payload any) {
	if err := s.gateway.Publish(ctx, channel, event, payload); err != nil {
		s.logger.Warn("broadcast failed", "channel", channel, "event", event, "error", err)
	}
}
