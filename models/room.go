package models

import "time"

const (
	RoomCodeLength    = 6
	DefaultMaxMembers = 50
)

type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
)

func (t RoomType) Valid() bool {
	return t == RoomPublic || t == RoomPrivate
}

type Room struct {
	ID          string    `json:"id" bson:"_id"`
	RoomCode    string    `json:"roomCode,omitempty" bson:"roomCode,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Type        RoomType  `json:"type" bson:"type"`
	Creator     string    `json:"creator" bson:"creator"`
	Members     []string  `json:"members" bson:"members"`
	LastMessage string    `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	MaxMembers  int       `json:"maxMembers" bson:"maxMembers"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NewRoom returns an active room whose only member is the creator.
func NewRoom(name, description string, roomType RoomType, creator string, maxMembers int) *Room {
	if roomType == "" {
		roomType = RoomPublic
	}
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}
	now := time.Now().UTC()
	return &Room{
		ID:          NewID(),
		Name:        name,
		Description: description,
		Type:        roomType,
		Creator:     creator,
		Members:     []string{creator},
		IsActive:    true,
		MaxMembers:  maxMembers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Room) IsPrivate() bool {
	return r.Type == RoomPrivate
}

func (r *Room) HasMember(userID string) bool {
	return containsID(r.Members, userID)
}

func (r *Room) IsFull() bool {
	return len(r.Members) >= r.MaxMembers
}

// CodeMatches reports whether code admits the caller. Public rooms need no code.
func (r *Room) CodeMatches(code string) bool {
	if !r.IsPrivate() {
		return true
	}
	return code != "" && code == r.RoomCode
}

// Redacted hides the join code from anyone who is not already a member.
func (r Room) Redacted(viewer string) Room {
	if !r.HasMember(viewer) {
		r.RoomCode = ""
	}
	return r
}

// RoomChannel is the hub channel every member connection listens on.
func RoomChannel(roomID string) string {
	return "room_" + roomID
}

// UserChannel is the personal channel shared by all of a user's connections.
func UserChannel(userID string) string {
	return "user_" + userID
}
