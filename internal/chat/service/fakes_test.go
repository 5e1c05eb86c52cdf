package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stashhub/internal/chat/models"
	"stashhub/internal/chat/repository"

	"gorm.io/gorm"
)

// In-memory repository fakes with the same conditional-update semantics
// as the gorm implementations, so service tests exercise real predicate
// behavior instead of canned answers.

func memberKey(roomID int64, userID string) string {
	return fmt.Sprintf("%d/%s", roomID, userID)
}

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*models.RoomMember
	nextID  int64

	createErr error
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[string]*models.RoomMember)}
}

func (r *fakeMemberRepo) Create(ctx context.Context, member *models.RoomMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := memberKey(member.RoomID, member.UserID)
	if _, exists := r.members[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	member.ID = r.nextID
	clone := *member
	r.members[key] = &clone
	return nil
}

func (r *fakeMemberRepo) Find(ctx context.Context, roomID int64, userID string) (*models.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *member
	return &clone, nil
}

func (r *fakeMemberRepo) Delete(ctx context.Context, roomID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey(roomID, userID)
	if _, ok := r.members[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.members, key)
	return nil
}

func (r *fakeMemberRepo) Touch(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsOnline = true
	t := seenAt
	member.LastSeenAt = &t
	return 1, nil
}

func (r *fakeMemberRepo) MarkOffline(ctx context.Context, roomID int64, userID string, seenAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsOnline = false
	t := seenAt
	member.LastSeenAt = &t
	return 1, nil
}

func (r *fakeMemberRepo) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, member := range r.members {
		if member.IsOnline && member.LastSeenAt != nil && member.LastSeenAt.Before(cutoff) {
			member.IsOnline = false
			count++
		}
	}
	return count, nil
}

func (r *fakeMemberRepo) RoomsWithInactiveMembers(ctx context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int64]bool)
	var roomIDs []int64
	for _, member := range r.members {
		if member.IsOnline && member.LastSeenAt != nil && member.LastSeenAt.Before(cutoff) && !seen[member.RoomID] {
			seen[member.RoomID] = true
			roomIDs = append(roomIDs, member.RoomID)
		}
	}
	return roomIDs, nil
}

func (r *fakeMemberRepo) ApplyMute(ctx context.Context, roomID int64, userID, mutedBy string, until *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsMuted = true
	member.MutedBy = &mutedBy
	member.MutedUntil = until
	return 1, nil
}

func (r *fakeMemberRepo) ClearMute(ctx context.Context, roomID int64, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsMuted = false
	member.MutedBy = nil
	member.MutedUntil = nil
	return 1, nil
}

func (r *fakeMemberRepo) ClearMuteIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok || !member.IsMuted || member.MutedUntil == nil || !member.MutedUntil.Before(now) {
		return 0, nil
	}
	member.IsMuted = false
	member.MutedBy = nil
	member.MutedUntil = nil
	return 1, nil
}

func (r *fakeMemberRepo) ApplyBan(ctx context.Context, roomID int64, userID, bannedBy string, until *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsBanned = true
	member.BannedBy = &bannedBy
	member.BannedUntil = until
	member.IsOnline = false
	return 1, nil
}

func (r *fakeMemberRepo) ClearBan(ctx context.Context, roomID int64, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok {
		return 0, nil
	}
	member.IsBanned = false
	member.BannedBy = nil
	member.BannedUntil = nil
	return 1, nil
}

func (r *fakeMemberRepo) ClearBanIfExpired(ctx context.Context, roomID int64, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey(roomID, userID)]
	if !ok || !member.IsBanned || member.BannedUntil == nil || !member.BannedUntil.Before(now) {
		return 0, nil
	}
	member.IsBanned = false
	member.BannedBy = nil
	member.BannedUntil = nil
	return 1, nil
}

func (r *fakeMemberRepo) ClearExpiredMutes(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, member := range r.members {
		if member.IsMuted && member.MutedUntil != nil && member.MutedUntil.Before(now) {
			member.IsMuted = false
			member.MutedBy = nil
			member.MutedUntil = nil
			count++
		}
	}
	return count, nil
}

func (r *fakeMemberRepo) ClearExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, member := range r.members {
		if member.IsBanned && member.BannedUntil != nil && member.BannedUntil.Before(now) {
			member.IsBanned = false
			member.BannedBy = nil
			member.BannedUntil = nil
			count++
		}
	}
	return count, nil
}

func (r *fakeMemberRepo) OnlineByRoom(ctx context.Context, roomID int64) ([]models.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []models.RoomMember
	for _, member := range r.members {
		if member.RoomID == roomID && member.IsOnline {
			members = append(members, *member)
		}
	}
	return members, nil
}

func (r *fakeMemberRepo) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, member := range r.members {
		if member.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (r *fakeMemberRepo) CountOnlineByRoom(ctx context.Context, roomID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, member := range r.members {
		if member.RoomID == roomID && member.IsOnline {
			count++
		}
	}
	return count, nil
}

var _ repository.MemberRepository = (*fakeMemberRepo)(nil)

type fakeRoomRepo struct {
	mu     sync.Mutex
	rooms  map[int64]*models.Room
	nextID int64
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[int64]*models.Room)}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.Name == room.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	room.ID = r.nextID
	clone := *room
	r.rooms[room.ID] = &clone
	return nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, roomID int64) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *room
	return &clone, nil
}

func (r *fakeRoomRepo) List(ctx context.Context, activeOnly bool) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []models.Room
	for _, room := range r.rooms {
		if !activeOnly || room.IsActive {
			rooms = append(rooms, *room)
		}
	}
	return rooms, nil
}

func (r *fakeRoomRepo) SetActive(ctx context.Context, roomID int64, active bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return 0, nil
	}
	room.IsActive = active
	return 1, nil
}

func (r *fakeRoomRepo) Delete(ctx context.Context, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.rooms, roomID)
	return nil
}

var _ repository.RoomRepository = (*fakeRoomRepo)(nil)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) add(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) FindByUsernames(ctx context.Context, usernames []string) (map[string]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved := make(map[string]*models.User)
	for _, name := range usernames {
		for _, user := range r.users {
			if strings.EqualFold(user.Username, name) {
				clone := *user
				resolved[strings.ToLower(name)] = &clone
			}
		}
	}
	return resolved, nil
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[int64]*models.Message
	nextID   int64
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[int64]*models.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	clone := *message
	r.messages[message.ID] = &clone
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *message
	return &clone, nil
}

func (r *fakeMessageRepo) DeleteByID(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[messageID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.messages, messageID)
	return nil
}

func (r *fakeMessageRepo) ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]models.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Message
	for _, message := range r.messages {
		if message.RoomID == roomID {
			all = append(all, *message)
		}
	}
	// Newest first, then the requested page window.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	offset := (page - 1) * pageSize
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeMessageRepo) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, message := range r.messages {
		if message.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

type fakeModerationRepo struct {
	mu      sync.Mutex
	actions []models.ModerationAction
}

func newFakeModerationRepo() *fakeModerationRepo {
	return &fakeModerationRepo{}
}

func (r *fakeModerationRepo) Create(ctx context.Context, action *models.ModerationAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	action.ID = int64(len(r.actions) + 1)
	r.actions = append(r.actions, *action)
	return nil
}

func (r *fakeModerationRepo) ListByRoom(ctx context.Context, roomID int64, filter repository.ModerationFilter, page, pageSize int) ([]models.ModerationAction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.ModerationAction
	for _, action := range r.actions {
		if action.RoomID != roomID {
			continue
		}
		if filter.ActionType != "" && action.ActionType != filter.ActionType {
			continue
		}
		if filter.TargetUserID != "" && action.TargetUserID != filter.TargetUserID {
			continue
		}
		matched = append(matched, action)
	}
	return matched, int64(len(matched)), nil
}

var _ repository.ModerationRepository = (*fakeModerationRepo)(nil)

type fakeActivityRepo struct {
	mu         sync.Mutex
	activities []models.RoomActivity
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{}
}

func (r *fakeActivityRepo) Create(ctx context.Context, activity *models.RoomActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	activity.ID = int64(len(r.activities) + 1)
	r.activities = append(r.activities, *activity)
	return nil
}

func (r *fakeActivityRepo) ListSince(ctx context.Context, roomID int64, since time.Time) ([]models.RoomActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.RoomActivity
	for _, activity := range r.activities {
		if activity.RoomID == roomID && !activity.CreatedAt.Before(since) {
			matched = append(matched, activity)
		}
	}
	return matched, nil
}

func (r *fakeActivityRepo) CountByTypeSince(ctx context.Context, roomID int64, since time.Time) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, activity := range r.activities {
		if activity.RoomID == roomID && !activity.CreatedAt.Before(since) {
			counts[activity.ActivityType]++
		}
	}
	return counts, nil
}

func (r *fakeActivityRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []models.RoomActivity
	var pruned int64
	for _, activity := range r.activities {
		if activity.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, activity)
	}
	r.activities = kept
	return pruned, nil
}

var _ repository.ActivityRepository = (*fakeActivityRepo)(nil)

// recorderGateway captures published events for assertions.
type recorderGateway struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

type recordedEvent struct {
	Channel string
	Event   string
	Payload any
}

func (g *recorderGateway) Publish(ctx context.Context, channel, event string, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.events = append(g.events, recordedEvent{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (g *recorderGateway) eventsNamed(event string) []recordedEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var matched []recordedEvent
	for _, e := range g.events {
		if e.Event == event {
			matched = append(matched, e)
		}
	}
	return matched
}

// failingStore always errors, for degradation tests.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, fmt.Errorf("store down")
}
func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return fmt.Errorf("store down")
}
func (failingStore) Delete(ctx context.Context, keys ...string) error {
	return fmt.Errorf("store down")
}
func (failingStore) DeleteByPattern(ctx context.Context, pattern string) error {
	return fmt.Errorf("store down")
}
func (failingStore) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, fmt.Errorf("store down")
}
