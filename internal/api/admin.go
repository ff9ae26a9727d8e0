package api

import (
	"context"
	"net/http"

	"mentalgoals/internal/middleware"
	"mentalgoals/internal/workers"
	"mentalgoals/pkg/auth"
	"mentalgoals/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Sweeper interface {
	Sweep(ctx context.Context) (workers.SweepReport, error)
}

type adminRoutes struct {
	sweeper Sweeper
}

func NewAdminRoutes(handler *gin.RouterGroup, sweeper Sweeper, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &adminRoutes{sweeper: sweeper}
	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), authz.AdminOnly())
	{
		h.POST("/cleanup", r.RunCleanup)
	}
}

func (r *adminRoutes) RunCleanup(c *gin.Context) {
	report, err := r.sweeper.Sweep(c.Request.Context())
	if err != nil {
		logger.Logger().Error("failed to run cleanup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run cleanup"})
		return
	}

	c.JSON(http.StatusOK, report)
}
