package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/services"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type Rooms interface {
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
	MemberRoomIDs(ctx context.Context, userID string) ([]string, error)
}

type Messages interface {
	SendRoomMessage(ctx context.Context, senderID, roomID, content string) (*models.MessageView, error)
	SendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (*models.MessageView, error)
}

type Presence interface {
	SetStatus(ctx context.Context, userID string, status models.UserStatus) error
}

// Router turns client events into service calls.
type Router struct {
	hub             *Hub
	auth            Authenticator
	rooms           Rooms
	messages        Messages
	presence        Presence
	eventsPerSecond int
	log             *zap.Logger
}

func NewRouter(hub *Hub, auth Authenticator, rooms Rooms, messages Messages, presence Presence, eventsPerSecond int, log *zap.Logger) *Router {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 10
	}
	return &Router{
		hub:             hub,
		auth:            auth,
		rooms:           rooms,
		messages:        messages,
		presence:        presence,
		eventsPerSecond: eventsPerSecond,
		log:             log,
	}
}

var errMissingField = errors.New("missing field")

type authenticatePayload struct {
	Token string `json:"token"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type roomMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type privateMessagePayload struct {
	ToUserID string `json:"toUserId"`
	Content  string `json:"content"`
}

func decodeData[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errMissingField
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// scalarOr accepts either a bare JSON string or an object carrying the value.
func scalarOr[T any](raw json.RawMessage, pick func(T) string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	v, err := decodeData[T](raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(pick(v)), nil
}

func (r *Router) dispatch(c *Client, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger().Error("panic handling event", zap.String("type", env.Type), zap.Any("panic", rec))
			c.sendError("internal server error")
		}
	}()

	if !c.limiter.Allow() {
		c.sendError("rate limit exceeded")
		return
	}
	if env.Type == models.EventPing {
		c.sendEvent(models.EventPong, nil)
		return
	}
	if env.Type != models.EventAuthenticate && !c.Authenticated() {
		c.sendError("authentication required")
		return
	}

	ctx, cancel := serveContext()
	defer cancel()

	switch env.Type {
	case models.EventAuthenticate:
		r.authenticate(ctx, c, env.Data)
	case models.EventJoinRoom:
		r.joinRoom(ctx, c, env.Data)
	case models.EventLeaveRoom:
		r.leaveRoom(c, env.Data)
	case models.EventSendMessage:
		r.sendMessage(ctx, c, env.Data)
	case models.EventPrivateMessage:
		r.privateMessage(ctx, c, env.Data)
	default:
		c.sendError("unknown event type")
	}
}

func (r *Router) authenticate(ctx context.Context, c *Client, raw json.RawMessage) {
	if c.Authenticated() {
		return
	}
	token, err := scalarOr(raw, func(p authenticatePayload) string { return p.Token })
	if err != nil || token == "" {
		c.sendError("authentication failed")
		return
	}
	u, err := r.auth.Authenticate(ctx, token)
	if err != nil {
		c.sendError("authentication failed")
		return
	}
	if !c.bind(u) {
		return
	}
	first := r.hub.Bind(c, u.ID)
	r.hub.Subscribe(c, models.UserChannel(u.ID))

	roomIDs, err := r.rooms.MemberRoomIDs(ctx, u.ID)
	if err != nil {
		c.logger().Warn("load member rooms", zap.Error(err))
	}
	for _, id := range roomIDs {
		r.hub.Subscribe(c, models.RoomChannel(id))
	}

	if err := r.presence.SetStatus(ctx, u.ID, models.StatusOnline); err != nil {
		c.logger().Warn("set online", zap.Error(err))
	}
	c.logger().Info("client authenticated",
		zap.String("username", c.Username()), zap.Int("rooms", len(roomIDs)), zap.Bool("first_connection", first))
	c.sendEvent(models.EventAuthenticated, u.Summary())
}

func (r *Router) joinRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	roomID, err := scalarOr(raw, func(p roomPayload) string { return p.RoomID })
	if err != nil || roomID == "" {
		c.sendError("roomId is required")
		return
	}
	ok, err := r.rooms.IsMember(ctx, c.UserID(), roomID)
	if err != nil {
		c.sendError(services.PublicMessage(err))
		return
	}
	if !ok {
		c.sendError("not a member of this room")
		return
	}
	r.hub.Subscribe(c, models.RoomChannel(roomID))
}

func (r *Router) leaveRoom(c *Client, raw json.RawMessage) {
	roomID, err := scalarOr(raw, func(p roomPayload) string { return p.RoomID })
	if err != nil || roomID == "" {
		c.sendError("roomId is required")
		return
	}
	r.hub.Unsubscribe(c, models.RoomChannel(roomID))
}

func (r *Router) sendMessage(ctx context.Context, c *Client, raw json.RawMessage) {
	p, err := decodeData[roomMessagePayload](raw)
	if err != nil || p.RoomID == "" {
		c.sendError("roomId and content are required")
		return
	}
	if _, err := r.messages.SendRoomMessage(ctx, c.UserID(), p.RoomID, p.Content); err != nil {
		c.logger().Debug("send room message", zap.String("room_id", p.RoomID), zap.Error(err))
		c.sendError(services.PublicMessage(err))
	}
}

func (r *Router) privateMessage(ctx context.Context, c *Client, raw json.RawMessage) {
	p, err := decodeData[privateMessagePayload](raw)
	if err != nil || p.ToUserID == "" {
		c.sendError("toUserId and content are required")
		return
	}
	if _, err := r.messages.SendPrivateMessage(ctx, c.UserID(), p.ToUserID, p.Content); err != nil {
		c.logger().Debug("send private message", zap.String("to", p.ToUserID), zap.Error(err))
		c.sendError(services.PublicMessage(err))
	}
}

// disconnect marks the user offline once their last local connection closes.
func (r *Router) disconnect(c *Client) {
	last := r.hub.Remove(c)
	if !last {
		return
	}
	ctx, cancel := serveContext()
	defer cancel()
	if err := r.presence.SetStatus(ctx, c.UserID(), models.StatusOffline); err != nil {
		c.logger().Warn("set offline", zap.Error(err))
	}
	c.logger().Info("client disconnected")
}
