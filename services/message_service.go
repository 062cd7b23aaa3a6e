package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/repository"
)

const (
	defaultPageSize     = 50
	maxPageSize         = 100
	conversationPreview = 50
)

type MessageService struct {
	store  *repository.Store
	notify Notifier
	maxLen int
	log    *zap.Logger
}

func NewMessageService(store *repository.Store, notify Notifier, maxMessageLength int, log *zap.Logger) *MessageService {
	return &MessageService{store: store, notify: orNop(notify), maxLen: maxMessageLength, log: log}
}

func (s *MessageService) validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("message content is required")
	}
	if s.maxLen > 0 && utf8.RuneCountInString(content) > s.maxLen {
		return "", invalid("message too long (max %d characters)", s.maxLen)
	}
	return content, nil
}

// SendRoomMessage persists a room message and broadcasts it to the room channel.
// Membership is checked against the store.
func (s *MessageService) SendRoomMessage(ctx context.Context, senderID, roomID, content string) (*models.MessageView, error) {
	content, err := s.validContent(content)
	if err != nil {
		return nil, err
	}
	room, err := s.store.Rooms.FindByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("room not found")
	}
	if err != nil {
		return nil, internal("find room", err)
	}
	if !room.HasMember(senderID) {
		return nil, forbidden("not a member of this room")
	}
	sender, err := s.store.Users.FindByID(ctx, senderID)
	if err != nil {
		return nil, internal("find sender", err)
	}

	msg := models.NewRoomMessage(senderID, roomID, content)
	if err := s.store.Messages.SaveRoomMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("room not found")
		}
		return nil, internal("save message", err)
	}

	view := msg.View(sender.Summary(), nil)
	if err := s.notify.Emit(ctx, models.RoomChannel(roomID), models.EventMessage, view); err != nil {
		s.log.Warn("room broadcast failed", zap.String("room_id", roomID), zap.Error(err))
	}
	return &view, nil
}

// SendPrivateMessage persists a 1:1 message with both summaries, delivers it to
// both participants and tells the sender its unread count for the peer is zero.
func (s *MessageService) SendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (*models.MessageView, error) {
	content, err := s.validContent(content)
	if err != nil {
		return nil, err
	}
	if receiverID == senderID {
		return nil, invalid("cannot send a private message to yourself")
	}
	if !models.ValidID(receiverID) {
		return nil, notFound("recipient not found")
	}
	receiver, err := s.store.Users.FindByID(ctx, receiverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("recipient not found")
	}
	if err != nil {
		return nil, internal("find recipient", err)
	}
	sender, err := s.store.Users.FindByID(ctx, senderID)
	if err != nil {
		return nil, internal("find sender", err)
	}

	msg := models.NewPrivateMessage(senderID, receiverID, content)
	if err := s.store.Messages.SavePrivateMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("recipient not found")
		}
		return nil, internal("save message", err)
	}

	rs := receiver.Summary()
	view := msg.View(sender.Summary(), &rs)
	for _, ch := range []string{models.UserChannel(receiverID), models.UserChannel(senderID)} {
		if err := s.notify.Emit(ctx, ch, models.EventPrivateMessage, view); err != nil {
			s.log.Warn("private broadcast failed", zap.String("channel", ch), zap.Error(err))
		}
	}
	reset := models.UnreadCountEvent{UserID: receiverID, Count: 0}
	if err := s.notify.Emit(ctx, models.UserChannel(senderID), models.EventUnreadCount, reset); err != nil {
		s.log.Warn("unread broadcast failed", zap.String("user_id", senderID), zap.Error(err))
	}
	return &view, nil
}

// RoomHistory returns a newest-first page of a room's messages. Members only.
func (s *MessageService) RoomHistory(ctx context.Context, userID, roomID string, page, limit int) (*History, error) {
	room, err := s.store.Rooms.FindByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("room not found")
	}
	if err != nil {
		return nil, internal("find room", err)
	}
	if !room.HasMember(userID) {
		return nil, forbidden("not a member of this room")
	}
	page, limit = normalizePage(page, limit)
	msgs, total, err := s.store.Messages.ListByRoom(ctx, roomID, (page-1)*limit, limit)
	if err != nil {
		return nil, internal("list messages", err)
	}
	return s.history(ctx, msgs, page, limit, total)
}

// PrivateHistory returns a newest-first page of the conversation with peerID.
func (s *MessageService) PrivateHistory(ctx context.Context, userID, peerID string, page, limit int) (*History, error) {
	page, limit = normalizePage(page, limit)
	msgs, total, err := s.store.Messages.ListConversation(ctx, userID, peerID, (page-1)*limit, limit)
	if err != nil {
		return nil, internal("list messages", err)
	}
	return s.history(ctx, msgs, page, limit, total)
}

func (s *MessageService) history(ctx context.Context, msgs []models.Message, page, limit int, total int64) (*History, error) {
	views, err := messageViews(ctx, s.store.Users, msgs)
	if err != nil {
		return nil, internal("load senders", err)
	}
	return &History{Messages: views, Pagination: models.NewPage(page, limit, total)}, nil
}

// OpenConversation ensures a private chat with peerID exists, resets its unread
// counter and returns the latest messages oldest first.
func (s *MessageService) OpenConversation(ctx context.Context, userID, peerID string) (*Conversation, error) {
	if peerID == userID {
		return nil, invalid("cannot open a chat with yourself")
	}
	if _, err := s.store.Users.FindByID(ctx, peerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user not found")
		}
		return nil, internal("find user", err)
	}
	msgs, _, err := s.store.Messages.ListConversation(ctx, userID, peerID, 0, conversationPreview)
	if err != nil {
		return nil, internal("list messages", err)
	}
	if err := s.store.Users.ResetUnread(ctx, userID, peerID); err != nil {
		return nil, internal("reset unread", err)
	}
	u, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, internal("find user", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	views, err := messageViews(ctx, s.store.Users, msgs)
	if err != nil {
		return nil, internal("load senders", err)
	}
	chat := models.PrivateChat{With: peerID}
	if pc := u.PrivateChatWith(peerID); pc != nil {
		chat = *pc
	}
	return &Conversation{Chat: chat, Messages: views}, nil
}

// MarkRead records a receipt on every listed message userID can see. It
// returns how many messages gained a receipt.
func (s *MessageService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("messageIds is required")
	}
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		m, err := s.store.Messages.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, internal("find message", err)
		}
		ok, err := s.canSee(ctx, userID, m)
		if err != nil {
			return 0, err
		}
		if ok {
			visible = models.AddID(visible, id)
		}
	}
	n, err := s.store.Messages.MarkRead(ctx, visible, userID, time.Now().UTC())
	if err != nil {
		return 0, internal("mark read", err)
	}
	return n, nil
}

func (s *MessageService) canSee(ctx context.Context, userID string, m *models.Message) (bool, error) {
	if m.MessageType == models.MessagePrivate {
		return m.Sender == userID || m.Receiver == userID, nil
	}
	ok, err := s.store.Memberships.IsUserMember(ctx, m.Room, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, internal("check membership", err)
	}
	return ok, nil
}

// Delete removes a message. Only its sender may do so.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	m, err := s.store.Messages.FindByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("message not found")
	}
	if err != nil {
		return internal("find message", err)
	}
	if m.Sender != userID {
		return forbidden("only the sender can delete a message")
	}
	if err := s.store.Messages.Delete(ctx, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("message not found")
		}
		return internal("delete message", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
