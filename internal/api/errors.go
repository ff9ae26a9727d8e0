package api

import (
	"errors"
	"net/http"

	"mentalgoals/internal/service"
	"mentalgoals/pkg/auth"
	"mentalgoals/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrChallengeNotFound), errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrChallengeExists),
		errors.Is(err, service.ErrChallengeFinished),
		errors.Is(err, service.ErrChallengeNotActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidProgress):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStoreNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, msg string, err error, fields ...zap.Field) {
	status := statusOf(err)
	fields = append(fields, zap.Error(err))

	if status == http.StatusInternalServerError {
		logger.Logger().Error(msg, fields...)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	logger.Logger().Info(msg, fields...)
	c.JSON(status, gin.H{"error": err.Error()})
}

func ownerOf(c *gin.Context) (string, bool) {
	owner, ok := auth.Owner(c)
	if !ok {
		logger.Logger().Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return "", false
	}
	return owner, true
}
