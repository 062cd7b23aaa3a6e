package repository

import (
	"context"
	"time"

	"realtime-chat/models"
)

// MembershipRepository keeps room.members and user.joinedRooms in step.
type MembershipRepository interface {
	// AddMember fails with ErrAlreadyMember or ErrRoomFull without writing anything.
	AddMember(ctx context.Context, roomID, userID string) (*models.Room, error)
	// RemoveMember is a no-op for non-members.
	RemoveMember(ctx context.Context, roomID, userID string) (*models.Room, error)
	IsUserMember(ctx context.Context, roomID, userID string) (bool, error)
	// DeleteRoom removes the room, its messages and every member's reference
	// to it. It returns the members the room had.
	DeleteRoom(ctx context.Context, roomID string) ([]string, error)
}

type InMemoryMembershipRepo struct {
	db *memDB
}

func (r *InMemoryMembershipRepo) AddMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	user, ok := r.db.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if room.HasMember(userID) {
		return nil, ErrAlreadyMember
	}
	if room.IsFull() {
		return nil, ErrRoomFull
	}
	room.Members = append(room.Members, userID)
	room.UpdatedAt = time.Now().UTC()
	user.JoinedRooms = models.AddID(user.JoinedRooms, roomID)
	return cloneRoom(room), nil
}

func (r *InMemoryMembershipRepo) RemoveMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if room.HasMember(userID) {
		room.Members = models.RemoveID(room.Members, userID)
		room.UpdatedAt = time.Now().UTC()
	}
	if user, ok := r.db.users[userID]; ok {
		user.JoinedRooms = models.RemoveID(user.JoinedRooms, roomID)
	}
	return cloneRoom(room), nil
}

func (r *InMemoryMembershipRepo) IsUserMember(ctx context.Context, roomID, userID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	return room.HasMember(userID), nil
}

func (r *InMemoryMembershipRepo) DeleteRoom(ctx context.Context, roomID string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, id := range room.Members {
		if user, ok := r.db.users[id]; ok {
			user.JoinedRooms = models.RemoveID(user.JoinedRooms, roomID)
		}
	}
	kept := r.db.order[:0]
	for _, id := range r.db.order {
		if r.db.messages[id].Room == roomID {
			delete(r.db.messages, id)
			continue
		}
		kept = append(kept, id)
	}
	r.db.order = kept
	delete(r.db.rooms, roomID)
	return append([]string{}, room.Members...), nil
}
