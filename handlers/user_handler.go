package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/services"
)

type UserHandler struct {
	auth     *services.AuthService
	presence *services.PresenceService
	messages *services.MessageService
	log      *zap.Logger
}

func NewUserHandler(a *services.AuthService, p *services.PresenceService, m *services.MessageService, log *zap.Logger) *UserHandler {
	return &UserHandler{auth: a, presence: p, messages: m, log: log}
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, authResponse{User: user, Token: token})
}

func (h *UserHandler) Profile(c *gin.Context) {
	p, err := h.auth.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, p)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var upd models.ProfileUpdate
	if !bindJSON(c, &upd) {
		return
	}
	u, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), upd)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, u)
}

func (h *UserHandler) Contacts(c *gin.Context) {
	list, err := h.auth.Contacts(c.Request.Context(), currentUser(c))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, list)
}

func (h *UserHandler) AddContact(c *gin.Context) {
	if err := h.auth.AddContact(c.Request.Context(), currentUser(c), c.Param("userId")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "contact added"})
}

func (h *UserHandler) RemoveContact(c *gin.Context) {
	if err := h.auth.RemoveContact(c.Request.Context(), currentUser(c), c.Param("userId")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "contact removed"})
}

func (h *UserHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status models.UserStatus `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.presence.SetStatus(c.Request.Context(), currentUser(c), req.Status); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"status": req.Status})
}

// SignOut marks the caller offline. Tokens are stateless and stay valid
// until they expire.
func (h *UserHandler) SignOut(c *gin.Context) {
	if err := h.presence.SetStatus(c.Request.Context(), currentUser(c), models.StatusOffline); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, gin.H{"message": "signed out"})
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.auth.SearchUsers(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, users)
}

func (h *UserHandler) OpenChat(c *gin.Context) {
	conv, err := h.messages.OpenConversation(c.Request.Context(), currentUser(c), c.Param("userId"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, conv)
}
