package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/models"
)

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// WithAuth resolves the Authorization header to a user. Both "Bearer <token>"
// and a bare token are accepted.
func WithAuth(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token == "" {
			respondWithFailure(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		u, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondWithError(c, log, err)
			return
		}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxUsername, u.Username)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// RequestLogger logs one line per request once it completes.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if uid := currentUser(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic in handler", zap.String("path", c.Request.URL.Path), zap.Any("panic", recovered))
		respondWithFailure(c, http.StatusInternalServerError, "internal server error")
	})
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	respondWithFailure(c, http.StatusTooManyRequests,
		"too many requests, try again in "+time.Until(info.ResetTime).Round(time.Millisecond).String())
}

// RateLimit allows perSecond requests per client IP.
func RateLimit(perSecond int) gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: uint(perSecond),
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: rateLimitErrorHandler,
		KeyFunc:      keyFunc,
	})
}
