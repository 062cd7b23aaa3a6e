package models

// Socket event names.
const (
	EventAuthenticate   = "authenticate"
	EventAuthenticated  = "authenticated"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSendMessage    = "sendMessage"
	EventPrivateMessage = "privateMessage"
	EventMessage        = "message"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventUserStatus     = "userStatus"
	EventUnreadCount    = "unreadCount"
	EventError          = "error"
	EventPing           = "ping"
	EventPong           = "pong"
)

type UserStatusEvent struct {
	UserID string     `json:"userId"`
	Status UserStatus `json:"status"`
}

type MembershipEvent struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type UnreadCountEvent struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
