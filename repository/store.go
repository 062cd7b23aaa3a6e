package repository

import (
	"context"
	"errors"
	"sync"

	"realtime-chat/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("duplicate key")
	ErrAlreadyMember = errors.New("already a member")
	ErrRoomFull      = errors.New("room is full")
)

// Store bundles the repositories that share one backing database.
type Store struct {
	Users       UserRepository
	Rooms       RoomRepository
	Memberships MembershipRepository
	Messages    MessageRepository

	closer func(ctx context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

// memDB is the shared state of the in-memory repositories. Every compound
// write (join, leave, cascade delete, private summaries) runs under one lock.
type memDB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	rooms    map[string]*models.Room
	messages map[string]*models.Message
	order    []string // message ids in insertion order
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[string]*models.User),
		rooms:    make(map[string]*models.Room),
		messages: make(map[string]*models.Message),
	}
}

func NewInMemoryStore() *Store {
	db := newMemDB()
	return &Store{
		Users:       &InMemoryUserRepo{db: db},
		Rooms:       &InMemoryRoomRepo{db: db},
		Memberships: &InMemoryMembershipRepo{db: db},
		Messages:    &InMemoryMessageRepo{db: db},
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Contacts = append([]string{}, u.Contacts...)
	c.JoinedRooms = append([]string{}, u.JoinedRooms...)
	c.PrivateChats = append([]models.PrivateChat{}, u.PrivateChats...)
	return &c
}

func cloneRoom(r *models.Room) *models.Room {
	c := *r
	c.Members = append([]string{}, r.Members...)
	return &c
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.ReadBy = append([]models.ReadReceipt{}, m.ReadBy...)
	return &c
}

var (
	_ UserRepository       = (*InMemoryUserRepo)(nil)
	_ RoomRepository       = (*InMemoryRoomRepo)(nil)
	_ MembershipRepository = (*InMemoryMembershipRepo)(nil)
	_ MessageRepository    = (*InMemoryMessageRepo)(nil)
	_ UserRepository       = (*MongoUserRepo)(nil)
	_ RoomRepository       = (*MongoRoomRepo)(nil)
	_ MembershipRepository = (*MongoMembershipRepo)(nil)
	_ MessageRepository    = (*MongoMessageRepo)(nil)
)
