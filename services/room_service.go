package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"realtime-chat/models"
	"realtime-chat/repository"
	"realtime-chat/utils"
)

const roomCodeAttempts = 5

type CreateRoomInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        models.RoomType `json:"type"`
	MaxMembers  int             `json:"maxMembers"`
}

type RoomService struct {
	store      *repository.Store
	notify     Notifier
	newCode    func() string
	maxMembers int
	log        *zap.Logger
}

func NewRoomService(store *repository.Store, notify Notifier, newCode func() string, defaultMaxMembers int, log *zap.Logger) *RoomService {
	if defaultMaxMembers <= 0 {
		defaultMaxMembers = models.DefaultMaxMembers
	}
	return &RoomService{
		store:      store,
		notify:     orNop(notify),
		newCode:    newCode,
		maxMembers: defaultMaxMembers,
		log:        log,
	}
}

// Create makes userID the creator and only member. Private rooms get a join
// code; the caller sees it because they are a member.
func (s *RoomService) Create(ctx context.Context, userID string, in CreateRoomInput) (*RoomView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("room name is required")
	}
	if in.Type == "" {
		in.Type = models.RoomPublic
	}
	if !in.Type.Valid() {
		return nil, invalid("room type must be public or private")
	}
	if in.MaxMembers < 0 {
		return nil, invalid("maxMembers must be positive")
	}
	if in.MaxMembers == 0 {
		in.MaxMembers = s.maxMembers
	}

	room := models.NewRoom(name, strings.TrimSpace(in.Description), in.Type, userID, in.MaxMembers)
	var err error
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		if room.IsPrivate() {
			room.RoomCode = s.newCode()
		}
		err = s.store.Rooms.Create(ctx, room)
		if !errors.Is(err, repository.ErrDuplicate) || !room.IsPrivate() {
			break
		}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("user not found")
	case err != nil:
		return nil, internal("create room", err)
	}

	s.log.Info("room created",
		zap.String("room_id", room.ID), zap.String("creator", userID), zap.String("type", string(room.Type)))
	views, err := s.expand(ctx, userID, []models.Room{*room})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *RoomService) ListPublic(ctx context.Context, userID string) ([]RoomView, error) {
	rooms, err := s.store.Rooms.ListPublic(ctx)
	if err != nil {
		return nil, internal("list public rooms", err)
	}
	return s.expand(ctx, userID, rooms)
}

func (s *RoomService) ListMine(ctx context.Context, userID string) ([]RoomView, error) {
	rooms, err := s.store.Rooms.ListByMember(ctx, userID)
	if err != nil {
		return nil, internal("list rooms", err)
	}
	return s.expand(ctx, userID, rooms)
}

// Search ignores a type other than public or private.
func (s *RoomService) Search(ctx context.Context, userID, query string, roomType models.RoomType) ([]RoomView, error) {
	if !roomType.Valid() {
		roomType = ""
	}
	rooms, err := s.store.Rooms.Search(ctx, strings.TrimSpace(query), roomType)
	if err != nil {
		return nil, internal("search rooms", err)
	}
	return s.expand(ctx, userID, rooms)
}

func (s *RoomService) ListAvailable(ctx context.Context, userID string) ([]RoomView, error) {
	rooms, err := s.store.Rooms.ListAvailable(ctx, userID)
	if err != nil {
		return nil, internal("list available rooms", err)
	}
	return s.expand(ctx, userID, rooms)
}

// Join checks, in order: existence, existing membership, active state,
// capacity and, for private rooms, the join code.
func (s *RoomService) Join(ctx context.Context, userID, roomID, code string) (*RoomView, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	switch {
	case room.HasMember(userID):
		return nil, conflict("already a member of this room")
	case !room.IsActive:
		return nil, forbidden("room is inactive")
	case room.IsFull():
		return nil, conflict("room is full")
	case room.IsPrivate() && !utils.IsValidRoomCode(code), !room.CodeMatches(code):
		return nil, forbidden("invalid room code")
	}

	joined, err := s.store.Memberships.AddMember(ctx, roomID, userID)
	switch {
	case errors.Is(err, repository.ErrAlreadyMember):
		return nil, conflict("already a member of this room")
	case errors.Is(err, repository.ErrRoomFull):
		return nil, conflict("room is full")
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("room not found")
	case err != nil:
		return nil, internal("join room", err)
	}

	s.announce(ctx, roomID, userID, models.EventUserJoined)
	views, err := s.expand(ctx, userID, []models.Room{*joined})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Leave is a no-op for non-members. Members' connections stop receiving the
// room's traffic.
func (s *RoomService) Leave(ctx context.Context, userID, roomID string) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	wasMember := room.HasMember(userID)
	if _, err := s.store.Memberships.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("room not found")
		}
		return internal("leave room", err)
	}
	if !wasMember {
		return nil
	}
	channel := models.RoomChannel(roomID)
	if err := s.notify.Evict(ctx, channel, userID); err != nil {
		s.log.Warn("evict after leave failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.announce(ctx, roomID, userID, models.EventUserLeft)
	return nil
}

// Delete is allowed to the creator only and cascades to members and messages.
func (s *RoomService) Delete(ctx context.Context, userID, roomID string) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Creator != userID {
		return forbidden("only the room creator can delete the room")
	}
	if _, err := s.store.Memberships.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("room not found")
		}
		return internal("delete room", err)
	}
	if err := s.notify.Evict(ctx, models.RoomChannel(roomID), ""); err != nil {
		s.log.Warn("evict after delete failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.log.Info("room deleted", zap.String("room_id", roomID), zap.String("by", userID))
	return nil
}

// IsMember consults the store, not any cached subscription state.
func (s *RoomService) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	ok, err := s.store.Memberships.IsUserMember(ctx, roomID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, notFound("room not found")
	}
	if err != nil {
		return false, internal("check membership", err)
	}
	return ok, nil
}

// MemberRoomIDs lists the rooms userID currently belongs to.
func (s *RoomService) MemberRoomIDs(ctx context.Context, userID string) ([]string, error) {
	rooms, err := s.store.Rooms.ListByMember(ctx, userID)
	if err != nil {
		return nil, internal("list rooms", err)
	}
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *RoomService) findRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.store.Rooms.FindByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("room not found")
	}
	if err != nil {
		return nil, internal("find room", err)
	}
	return room, nil
}

func (s *RoomService) announce(ctx context.Context, roomID, userID, event string) {
	var username string
	if u, err := s.store.Users.FindByID(ctx, userID); err == nil {
		username = u.Username
	}
	evt := models.MembershipEvent{RoomID: roomID, UserID: userID, Username: username}
	if err := s.notify.Emit(ctx, models.RoomChannel(roomID), event, evt); err != nil {
		s.log.Warn("membership broadcast failed",
			zap.String("room_id", roomID), zap.String("event", event), zap.Error(err))
	}
}

// expand resolves creators and last messages, hiding join codes from non-members.
func (s *RoomService) expand(ctx context.Context, viewer string, rooms []models.Room) ([]RoomView, error) {
	creators := make([]string, 0, len(rooms))
	for _, r := range rooms {
		creators = models.AddID(creators, r.Creator)
	}
	index, err := summaries(ctx, s.store.Users, creators)
	if err != nil {
		return nil, internal("load room creators", err)
	}

	out := make([]RoomView, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(expandConcurrency)
	for i := range rooms {
		out[i] = RoomView{
			Room:    rooms[i].Redacted(viewer),
			Creator: summaryOf(index, rooms[i].Creator).Sender(),
		}
		last := rooms[i].LastMessage
		if last == "" {
			continue
		}
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			m, err := s.store.Messages.FindByID(gctx, last)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			sender, err := s.store.Users.FindByID(gctx, m.Sender)
			summary := models.UserSummary{ID: m.Sender}
			if err == nil {
				summary = sender.Summary()
			}
			v := m.View(summary, nil)
			out[i].LastMessage = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, internal("load last messages", err)
	}
	return out, nil
}
