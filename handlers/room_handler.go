package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/services"
)

type RoomHandler struct {
	rooms *services.RoomService
	log   *zap.Logger
}

func NewRoomHandler(r *services.RoomService, log *zap.Logger) *RoomHandler {
	return &RoomHandler{rooms: r, log: log}
}

func (h *RoomHandler) Create(c *gin.Context) {
	var in services.CreateRoomInput
	if !bindJSON(c, &in) {
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusCreated, room)
}

func (h *RoomHandler) Public(c *gin.Context) {
	h.list(c, h.rooms.ListPublic)
}

func (h *RoomHandler) Mine(c *gin.Context) {
	h.list(c, h.rooms.ListMine)
}

func (h *RoomHandler) Available(c *gin.Context) {
	h.list(c, h.rooms.ListAvailable)
}

func (h *RoomHandler) Search(c *gin.Context) {
	rooms, err := h.rooms.Search(c.Request.Context(), currentUser(c), c.Query("query"), models.RoomType(c.Query("type")))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, rooms)
}

func (h *RoomHandler) list(c *gin.Context, fn func(ctx context.Context, userID string) ([]services.RoomView, error)) {
	rooms, err := fn(c.Request.Context(), currentUser(c))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, rooms)
}

func (h *RoomHandler) Join(c *gin.Context) {
	var req struct {
		RoomCode string `json:"roomCode"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	room, err := h.rooms.Join(c.Request.Context(), currentUser(c), c.Param("id"), req.RoomCode)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, room)
}

func (h *RoomHandler) Leave(c *gin.Context) {
	if err := h.rooms.Leave(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "left room"})
}

func (h *RoomHandler) Delete(c *gin.Context) {
	if err := h.rooms.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "room deleted"})
}
