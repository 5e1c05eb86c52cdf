package repository

import (
	"context"
	"time"

	"stashhub/internal/chat/models"

	"gorm.io/gorm"
)

// MemberRepository owns the chat_room_members rows. All mutations are
// conditional UPDATE ... WHERE room_id = ? AND user_id = ? statements so
// that concurrent requests for the same membership never lose writes.
type MemberRepository interface {
	Create(ctx context.Context, member *models.RoomMember) error
	Find(ctx context.Context, roomID int64, userID string) (*models.RoomMember, error)
	Delete(ctx context.Context, roomID int64, userID string) error

	// Touch refreshes last_seen_at and flips is_online on. Returns the
	// number of rows matched (0 means no membership exists).
	Touch(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error)
	MarkOffline(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error)

	// SweepInactive flips online members offline when their last_seen_at
	// predates the cutoff. Members with a null last_seen_at are excluded
	// from the predicate. The condition is evaluated at write time, so a
	// heartbeat landing mid-sweep wins.
	SweepInactive(ctx context.Context, cutoff time.Time) (int64, error)
	RoomsWithInactiveMembers(ctx context.Context, cutoff time.Time) ([]int64, error)

	ApplyMute(ctx context.Context, roomID int64, userID, mutedBy string, until *time.Time) (int64, error)
	ClearMute(ctx context.Context, roomID int64, userID string) (int64, error)
	ClearMuteIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error)
	ApplyBan(ctx context.Context, roomID int64, userID, bannedBy string, until *time.Time) (int64, error)
	ClearBan(ctx context.Context, roomID int64, userID string) (int64, error)
	ClearBanIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error)
	ClearExpiredMutes(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredBans(ctx context.Context, now time.Time) (int64, error)

	OnlineByRoom(ctx context.Context, roomID int64) ([]models.RoomMember, error)
	CountByRoom(ctx context.Context, roomID int64) (int64, error)
	CountOnlineByRoom(ctx context.Context, roomID int64) (int64, error)
}

type memberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, member *models.RoomMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepository) Find(ctx context.Context, roomID int64, userID string) (*models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Preload("User").
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) Delete(ctx context.Context, roomID int64, userID string) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *memberRepository) Touch(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_online": true, "last_seen_at": seenAt})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) MarkOffline(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_online": false, "last_seen_at": seenAt})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("is_online = ? AND last_seen_at IS NOT NULL AND last_seen_at < ?", true, cutoff).
		Update("is_online", false)
	return result.RowsAffected, result.Error
}

func (r *memberRepository) RoomsWithInactiveMembers(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var roomIDs []int64
	err := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("is_online = ? AND last_seen_at IS NOT NULL AND last_seen_at < ?", true, cutoff).
		Distinct("room_id").
		Pluck("room_id", &roomIDs).Error
	return roomIDs, err
}

func (r *memberRepository) ApplyMute(ctx context.Context, roomID int64, userID, mutedBy string, until *time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_muted": true, "muted_by": mutedBy, "muted_until": until})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ClearMute(ctx context.Context, roomID int64, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_muted": false, "muted_by": nil, "muted_until": nil})
	return result.RowsAffected, result.Error
}

// ClearMuteIfExpired clears the mute only while it is still expired at write
// time, so a concurrent re-mute is not clobbered by a lazy-expiry read.
func (r *memberRepository) ClearMuteIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND is_muted = ? AND muted_until IS NOT NULL AND muted_until < ?",
			roomID, userID, true, now).
		Updates(map[string]any{"is_muted": false, "muted_by": nil, "muted_until": nil})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ApplyBan(ctx context.Context, roomID int64, userID, bannedBy string, until *time.Time) (int64, error) {
	// A ban also ejects the user from the live room.
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_banned": true, "banned_by": bannedBy, "banned_until": until, "is_online": false})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ClearBan(ctx context.Context, roomID int64, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_banned": false, "banned_by": nil, "banned_until": nil})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ClearBanIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND is_banned = ? AND banned_until IS NOT NULL AND banned_until < ?",
			roomID, userID, true, now).
		Updates(map[string]any{"is_banned": false, "banned_by": nil, "banned_until": nil})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ClearExpiredMutes(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("is_muted = ? AND muted_until IS NOT NULL AND muted_until < ?", true, now).
		Updates(map[string]any{"is_muted": false, "muted_by": nil, "muted_until": nil})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) ClearExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("is_banned = ? AND banned_until IS NOT NULL AND banned_until < ?", true, now).
		Updates(map[string]any{"is_banned": false, "banned_by": nil, "banned_until": nil})
	return result.RowsAffected, result.Error
}

func (r *memberRepository) OnlineByRoom(ctx context.Context, roomID int64) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_online = ?", roomID, true).
		Preload("User").
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *memberRepository) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

func (r *memberRepository) CountOnlineByRoom(ctx context.Context, roomID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND is_online = ?", roomID, true).
		Count(&count).Error
	return count, err
}
