package repository

import (
	"context"
	"sort"
	"strings"

	"realtime-chat/models"
)

type RoomRepository interface {
	// Create inserts the room and records it in the creator's joinedRooms.
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id string) (*models.Room, error)
	ListPublic(ctx context.Context) ([]models.Room, error)
	ListByMember(ctx context.Context, userID string) ([]models.Room, error)
	// Search matches any query term against name and description. An empty
	// roomType matches both types.
	Search(ctx context.Context, query string, roomType models.RoomType) ([]models.Room, error)
	// ListAvailable returns active rooms userID is not a member of.
	ListAvailable(ctx context.Context, userID string) ([]models.Room, error)
}

type InMemoryRoomRepo struct {
	db *memDB
}

func (r *InMemoryRoomRepo) Create(ctx context.Context, room *models.Room) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.rooms[room.ID]; ok {
		return ErrDuplicate
	}
	if room.RoomCode != "" {
		for _, existing := range r.db.rooms {
			if existing.RoomCode == room.RoomCode {
				return ErrDuplicate
			}
		}
	}
	creator, ok := r.db.users[room.Creator]
	if !ok {
		return ErrNotFound
	}
	r.db.rooms[room.ID] = cloneRoom(room)
	creator.JoinedRooms = models.AddID(creator.JoinedRooms, room.ID)
	return nil
}

func (r *InMemoryRoomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	room, ok := r.db.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRoom(room), nil
}

func (r *InMemoryRoomRepo) ListPublic(ctx context.Context) ([]models.Room, error) {
	return r.filter(func(room *models.Room) bool {
		return room.Type == models.RoomPublic
	}), nil
}

func (r *InMemoryRoomRepo) ListByMember(ctx context.Context, userID string) ([]models.Room, error) {
	return r.filter(func(room *models.Room) bool {
		return room.HasMember(userID)
	}), nil
}

func (r *InMemoryRoomRepo) Search(ctx context.Context, query string, roomType models.RoomType) ([]models.Room, error) {
	terms := strings.Fields(strings.ToLower(query))
	return r.filter(func(room *models.Room) bool {
		if roomType != "" && room.Type != roomType {
			return false
		}
		if len(terms) == 0 {
			return true
		}
		text := strings.ToLower(room.Name + " " + room.Description)
		for _, t := range terms {
			if strings.Contains(text, t) {
				return true
			}
		}
		return false
	}), nil
}

func (r *InMemoryRoomRepo) ListAvailable(ctx context.Context, userID string) ([]models.Room, error) {
	return r.filter(func(room *models.Room) bool {
		return room.IsActive && !room.HasMember(userID)
	}), nil
}

// filter returns matching rooms, most recently updated first.
func (r *InMemoryRoomRepo) filter(match func(*models.Room) bool) []models.Room {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.Room{}
	for _, room := range r.db.rooms {
		if match(room) {
			out = append(out, *cloneRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
