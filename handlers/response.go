package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/services"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindAuth:
		return http.StatusUnauthorized
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondWithError writes err as {error, message} with the status of its kind.
// Server errors are logged with their cause and reported generically.
func respondWithError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(services.KindOf(err))
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method), zap.String("path", c.FullPath()), zap.Error(err))
	}
	respondWithFailure(c, status, services.PublicMessage(err))
}

func respondWithFailure(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func respondWithSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// bindJSON decodes the body into v. Unknown fields are rejected, see
// NewRouter.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithFailure(c, http.StatusBadRequest, "invalid request body: empty body")
			return false
		}
		respondWithFailure(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be left out.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		respondWithFailure(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
