package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"realtime-chat/services"
	"realtime-chat/ws"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth     *services.AuthService
	Presence *services.PresenceService
	Rooms    *services.RoomService
	Messages *services.MessageService
	Sockets  *ws.Router
	Log      *zap.Logger

	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit int
	// StaticDir, when set, is served at /.
	StaticDir string
}

func NewRouter(d Deps) *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(Recovery(d.Log), RequestLogger(d.Log))
	r.Use(cors.New(corsConfig()))

	r.GET("/health", health)
	r.GET("/ws", func(c *gin.Context) {
		d.Sockets.ServeWS(c.Writer, c.Request)
	})

	api := r.Group("/api")
	if d.RateLimit > 0 {
		api.Use(RateLimit(d.RateLimit))
	}
	authed := WithAuth(d.Auth, d.Log)

	users := NewUserHandler(d.Auth, d.Presence, d.Messages, d.Log)
	u := api.Group("/users")
	u.POST("/register", users.Register)
	u.POST("/login", users.Login)
	u.Use(authed)
	u.GET("/profile", users.Profile)
	u.PATCH("/profile", users.UpdateProfile)
	u.GET("/contacts", users.Contacts)
	u.POST("/contacts/:userId", users.AddContact)
	u.DELETE("/contacts/:userId", users.RemoveContact)
	u.POST("/status", users.SetStatus)
	u.POST("/signout", users.SignOut)
	u.GET("/search", users.Search)
	u.GET("/chat/:userId", users.OpenChat)

	rooms := NewRoomHandler(d.Rooms, d.Log)
	rg := api.Group("/rooms", authed)
	rg.POST("", rooms.Create)
	rg.GET("/public", rooms.Public)
	rg.GET("/my", rooms.Mine)
	rg.GET("/search", rooms.Search)
	rg.GET("/available", rooms.Available)
	rg.POST("/:id/join", rooms.Join)
	rg.POST("/:id/leave", rooms.Leave)
	rg.DELETE("/:id", rooms.Delete)

	messages := NewMessageHandler(d.Messages, d.Log)
	mg := api.Group("/messages", authed)
	mg.GET("/room/:roomId", messages.RoomHistory)
	mg.GET("/private/:userId", messages.PrivateHistory)
	mg.POST("/read", messages.MarkRead)
	mg.DELETE("/:id", messages.Delete)

	if d.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(d.StaticDir))))
	}
	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.MaxAge = 24 * time.Hour
	return cfg
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
