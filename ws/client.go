package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"realtime-chat/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(outgoing{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

// Client is one WebSocket connection. It is anonymous until it authenticates.
type Client struct {
	ID string

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     *zap.Logger

	mu       sync.RWMutex
	userID   string
	username string
}

func newClient(conn *websocket.Conn, eventsPerSecond int, log *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:      id,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), eventsPerSecond),
		log:     log.With(zap.String("conn_id", id)),
	}
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) Authenticated() bool {
	return c.UserID() != ""
}

// bind attaches an identity once. It reports false if one was already bound.
func (c *Client) bind(u *models.User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return false
	}
	c.userID = u.ID
	c.username = u.Username
	c.log = c.log.With(zap.String("user_id", u.ID))
	return true
}

// enqueue never blocks. A connection whose queue is full is closed.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger().Warn("send queue full, closing connection")
		c.close()
		return false
	}
}

func (c *Client) sendEvent(event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		c.logger().Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(msg)
}

func (c *Client) sendError(message string) {
	c.sendEvent(models.EventError, models.ErrorEvent{Message: message})
}

func (c *Client) logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(r *Router) {
	defer func() {
		c.close()
		r.disconnect(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger().Debug("read error", zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
			c.sendError("malformed event")
			continue
		}
		r.dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger().Debug("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().Debug("ping error", zap.Error(err))
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection until it closes.
// Authentication happens in-band with the authenticate event.
func (r *Router) ServeWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newClient(conn, r.eventsPerSecond, r.log)
	c.logger().Debug("client connected", zap.String("remote", req.RemoteAddr))

	go c.writePump()
	c.readPump(r)
}

// serveContext bounds the store work done for a single event.
func serveContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
