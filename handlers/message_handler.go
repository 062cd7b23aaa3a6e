package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/services"
)

type MessageHandler struct {
	messages *services.MessageService
	log      *zap.Logger
}

func NewMessageHandler(m *services.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: m, log: log}
}

// RoomHistory serves ?page&limit; out-of-range values fall back to defaults.
func (h *MessageHandler) RoomHistory(c *gin.Context) {
	hist, err := h.messages.RoomHistory(c.Request.Context(), currentUser(c), c.Param("roomId"),
		queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, hist)
}

func (h *MessageHandler) PrivateHistory(c *gin.Context) {
	hist, err := h.messages.PrivateHistory(c.Request.Context(), currentUser(c), c.Param("userId"),
		queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, hist)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"messageIds"`
	}
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.messages.MarkRead(c.Request.Context(), currentUser(c), req.MessageIDs)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"marked": n})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "message deleted"})
}
