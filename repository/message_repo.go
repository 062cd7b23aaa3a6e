package repository

import (
	"context"
	"errors"
	"time"

	"realtime-chat/models"
)

type MessageRepository interface {
	// SaveRoomMessage inserts m and points the room's lastMessage at it.
	SaveRoomMessage(ctx context.Context, m *models.Message) error
	// SavePrivateMessage inserts m and updates both participants' private chat
	// summaries: lastMessage on both, receiver unread incremented, sender unread zeroed.
	SavePrivateMessage(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// ListByRoom returns a newest-first page and the total count.
	ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.Message, int64, error)
	// ListConversation returns a newest-first page of the messages exchanged
	// between a and b and the total count.
	ListConversation(ctx context.Context, a, b string, skip, limit int) ([]models.Message, int64, error)
	// MarkRead adds a receipt for userID to every listed message that lacks one.
	MarkRead(ctx context.Context, ids []string, userID string, at time.Time) (int64, error)
	// Delete removes the message, repointing its room's lastMessage if needed.
	Delete(ctx context.Context, id string) error
}

type InMemoryMessageRepo struct {
	db *memDB
}

func (r *InMemoryMessageRepo) SaveRoomMessage(ctx context.Context, m *models.Message) error {
	if m == nil {
		return errors.New("nil message")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room, ok := r.db.rooms[m.Room]
	if !ok {
		return ErrNotFound
	}
	r.insertLocked(m)
	room.LastMessage = m.ID
	room.UpdatedAt = m.CreatedAt
	return nil
}

func (r *InMemoryMessageRepo) SavePrivateMessage(ctx context.Context, m *models.Message) error {
	if m == nil {
		return errors.New("nil message")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	sender, ok := r.db.users[m.Sender]
	if !ok {
		return ErrNotFound
	}
	receiver, ok := r.db.users[m.Receiver]
	if !ok {
		return ErrNotFound
	}
	r.insertLocked(m)

	out := sender.EnsurePrivateChat(receiver.ID)
	out.LastMessage = m.ID
	out.UnreadCount = 0

	in := receiver.EnsurePrivateChat(sender.ID)
	in.LastMessage = m.ID
	in.UnreadCount++
	return nil
}

func (r *InMemoryMessageRepo) insertLocked(m *models.Message) {
	r.db.messages[m.ID] = cloneMessage(m)
	r.db.order = append(r.db.order, m.ID)
}

func (r *InMemoryMessageRepo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *InMemoryMessageRepo) ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.Message, int64, error) {
	msgs, total := r.newestFirst(func(m *models.Message) bool {
		return m.MessageType == models.MessageRoom && m.Room == roomID
	}, skip, limit)
	return msgs, total, nil
}

func (r *InMemoryMessageRepo) ListConversation(ctx context.Context, a, b string, skip, limit int) ([]models.Message, int64, error) {
	msgs, total := r.newestFirst(func(m *models.Message) bool {
		if m.MessageType != models.MessagePrivate {
			return false
		}
		return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
	}, skip, limit)
	return msgs, total, nil
}

func (r *InMemoryMessageRepo) newestFirst(match func(*models.Message) bool, skip, limit int) ([]models.Message, int64) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var total int64
	out := []models.Message{}
	for i := len(r.db.order) - 1; i >= 0; i-- {
		m := r.db.messages[r.db.order[i]]
		if !match(m) {
			continue
		}
		total++
		if total <= int64(skip) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			continue
		}
		out = append(out, *cloneMessage(m))
	}
	return out, total
}

func (r *InMemoryMessageRepo) MarkRead(ctx context.Context, ids []string, userID string, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.db.messages[id]
		if !ok || m.ReadByUser(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, models.ReadReceipt{User: userID, ReadAt: at})
		n++
	}
	return n, nil
}

func (r *InMemoryMessageRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.messages[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.db.messages, id)
	for i, v := range r.db.order {
		if v == id {
			r.db.order = append(r.db.order[:i], r.db.order[i+1:]...)
			break
		}
	}
	if m.Room == "" {
		return nil
	}
	room, ok := r.db.rooms[m.Room]
	if !ok || room.LastMessage != id {
		return nil
	}
	room.LastMessage = ""
	for i := len(r.db.order) - 1; i >= 0; i-- {
		if r.db.messages[r.db.order[i]].Room == room.ID {
			room.LastMessage = r.db.order[i]
			break
		}
	}
	return nil
}
