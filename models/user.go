package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultAvatar = "default-avatar.png"

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway:
		return true
	}
	return false
}

// PrivateChat is the per-peer summary a user keeps for 1:1 conversations.
type PrivateChat struct {
	With        string `json:"with" bson:"with"`
	LastMessage string `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	UnreadCount int    `json:"unreadCount" bson:"unreadCount"`
}

type User struct {
	ID           string        `json:"id" bson:"_id"`
	Username     string        `json:"username" bson:"username"`
	Email        string        `json:"email" bson:"email"`
	Password     string        `json:"-" bson:"password"`
	Avatar       string        `json:"avatar" bson:"avatar"`
	Status       UserStatus    `json:"status" bson:"status"`
	LastSeen     time.Time     `json:"lastSeen" bson:"lastSeen"`
	Contacts     []string      `json:"contacts" bson:"contacts"`
	JoinedRooms  []string      `json:"joinedRooms" bson:"joinedRooms"`
	PrivateChats []PrivateChat `json:"privateChats" bson:"privateChats"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// NewUser returns an offline user with empty reference lists.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           NewID(),
		Username:     username,
		Email:        email,
		Password:     passwordHash,
		Avatar:       DefaultAvatar,
		Status:       StatusOffline,
		LastSeen:     now,
		Contacts:     []string{},
		JoinedRooms:  []string{},
		PrivateChats: []PrivateChat{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (u *User) HasContact(id string) bool {
	return containsID(u.Contacts, id)
}

func (u *User) HasJoined(roomID string) bool {
	return containsID(u.JoinedRooms, roomID)
}

// PrivateChatWith returns the summary for peer, or nil when none exists.
func (u *User) PrivateChatWith(peer string) *PrivateChat {
	for i := range u.PrivateChats {
		if u.PrivateChats[i].With == peer {
			return &u.PrivateChats[i]
		}
	}
	return nil
}

// EnsurePrivateChat returns the summary for peer, appending an empty one if absent.
func (u *User) EnsurePrivateChat(peer string) *PrivateChat {
	if pc := u.PrivateChatWith(peer); pc != nil {
		return pc
	}
	u.PrivateChats = append(u.PrivateChats, PrivateChat{With: peer})
	return &u.PrivateChats[len(u.PrivateChats)-1]
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Status:   u.Status,
		LastSeen: u.LastSeen,
	}
}

// UserSummary is the display projection used when a reference is expanded.
type UserSummary struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	Avatar   string     `json:"avatar,omitempty"`
	Status   UserStatus `json:"status,omitempty"`
	LastSeen time.Time  `json:"lastSeen,omitempty"`
}

// Sender trims a summary down to the fields shown next to a message.
func (s UserSummary) Sender() UserSummary {
	return UserSummary{ID: s.ID, Username: s.Username, Avatar: s.Avatar}
}

// ProfileUpdate enumerates the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.Password == nil && p.Avatar == nil
}

// NewID returns a fresh 24-hex object id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id looks like an object id.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AddID appends id unless already present.
func AddID(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids without any occurrence of id.
func RemoveID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
