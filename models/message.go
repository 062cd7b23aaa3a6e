package models

import (
	"errors"
	"time"
)

type MessageType string

const (
	MessageRoom    MessageType = "room"
	MessagePrivate MessageType = "private"
)

var ErrMessageShape = errors.New("message must reference exactly one of room or receiver")

type ReadReceipt struct {
	User   string    `json:"user" bson:"user"`
	ReadAt time.Time `json:"readAt" bson:"readAt"`
}

type Message struct {
	ID          string        `json:"id" bson:"_id"`
	Content     string        `json:"content" bson:"content"`
	Sender      string        `json:"sender" bson:"sender"`
	Room        string        `json:"room,omitempty" bson:"room,omitempty"`
	Receiver    string        `json:"receiver,omitempty" bson:"receiver,omitempty"`
	MessageType MessageType   `json:"messageType" bson:"messageType"`
	ReadBy      []ReadReceipt `json:"readBy" bson:"readBy"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updatedAt"`
}

func NewRoomMessage(sender, roomID, content string) *Message {
	return newMessage(sender, content, MessageRoom, roomID, "")
}

func NewPrivateMessage(sender, receiver, content string) *Message {
	return newMessage(sender, content, MessagePrivate, "", receiver)
}

func newMessage(sender, content string, t MessageType, room, receiver string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:          NewID(),
		Content:     content,
		Sender:      sender,
		Room:        room,
		Receiver:    receiver,
		MessageType: t,
		ReadBy:      []ReadReceipt{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate enforces the room/receiver discriminant.
func (m *Message) Validate() error {
	switch m.MessageType {
	case MessageRoom:
		if m.Room == "" || m.Receiver != "" {
			return ErrMessageShape
		}
	case MessagePrivate:
		if m.Receiver == "" || m.Room != "" {
			return ErrMessageShape
		}
	default:
		return ErrMessageShape
	}
	return nil
}

func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.User == userID {
			return true
		}
	}
	return false
}

// MessageView is a message with its sender (and receiver) expanded.
type MessageView struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	Sender      UserSummary   `json:"sender"`
	Room        string        `json:"room,omitempty"`
	Receiver    *UserSummary  `json:"receiver,omitempty"`
	MessageType MessageType   `json:"messageType"`
	ReadBy      []ReadReceipt `json:"readBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (m *Message) View(sender UserSummary, receiver *UserSummary) MessageView {
	v := MessageView{
		ID:          m.ID,
		Content:     m.Content,
		Sender:      sender.Sender(),
		Room:        m.Room,
		MessageType: m.MessageType,
		ReadBy:      m.ReadBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if receiver != nil {
		r := receiver.Sender()
		v.Receiver = &r
	}
	if v.ReadBy == nil {
		v.ReadBy = []ReadReceipt{}
	}
	return v
}

// Page describes one slice of a paginated listing.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPage(page, limit int, total int64) Page {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Page{Page: page, Limit: limit, Total: total, Pages: pages}
}
