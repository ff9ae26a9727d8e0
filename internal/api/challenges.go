package api

import (
	"net/http"
	"sync"

	"mentalgoals/internal/model"
	"mentalgoals/internal/service"
	"mentalgoals/pkg/auth"
	"mentalgoals/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type challengeRoutes struct {
	cs service.ChallengeServiceI
	ps service.ProgressServiceI
	a  *auth.TelegramAuth

	seeded sync.Map
}

func NewChallengeRoutes(handler *gin.RouterGroup, cs service.ChallengeServiceI, ps service.ProgressServiceI, a *auth.TelegramAuth) {
	r := &challengeRoutes{cs: cs, ps: ps, a: a}
	h := handler.Group("/challenges")
	h.Use(a.TelegramAuthMiddleware(), r.ensureDefaults())
	{
		h.GET("", r.ListChallenges)
		h.POST("", r.AddChallenge)
		h.GET("/active", r.GetActiveChallenge)
		h.GET("/active/ws", r.StreamActiveChallenge)
		h.POST("/deactivate", r.DeactivateAllChallenges)

		h.GET("/:id", r.GetChallenge)
		h.PUT("/:id", r.UpdateChallenge)
		h.DELETE("/:id", r.DeleteChallenge)
		h.POST("/:id/activate", r.ActivateChallenge)
		h.POST("/:id/quit", r.QuitChallenge)
		h.POST("/:id/complete", r.CompleteChallenge)
		h.POST("/:id/finalize", r.FinalizeChallenge)
		h.PATCH("/:id/status", r.UpdateChallengeStatus)

		h.GET("/:id/progress", r.GetTodayProgress)
		h.PUT("/:id/progress/:task_id", r.UpdateTodayProgress)
		h.GET("/:id/stats", r.GetDayStats)
		h.GET("/:id/phase", r.GetCurrentPhase)
	}
}

// ensureDefaults seeds the catalog the first time an owner is seen by this
// process. A failed seed is retried on the next request.
func (r *challengeRoutes) ensureDefaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := auth.Owner(c)
		if !ok {
			c.Next()
			return
		}

		if _, done := r.seeded.Load(owner); !done {
			if err := r.cs.EnsureDefaults(c.Request.Context(), owner); err != nil {
				logger.Logger().Warn("failed to seed default challenges",
					zap.String("owner", owner),
					zap.Error(err))
			} else {
				r.seeded.Store(owner, struct{}{})
			}
		}
		c.Next()
	}
}

func (r *challengeRoutes) ListChallenges(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	challenges, err := r.cs.ListChallenges(c.Request.Context(), owner)
	if err != nil {
		respondError(c, "failed to list challenges", err, zap.String("owner", owner))
		return
	}

	c.JSON(http.StatusOK, challenges)
}

func (r *challengeRoutes) AddChallenge(c *gin.Context) {
	log := logger.Logger()

	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	var req model.Challenge
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	added, err := r.cs.AddChallenge(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, "failed to add challenge", err, zap.String("owner", owner))
		return
	}

	c.JSON(http.StatusCreated, added)
}

func (r *challengeRoutes) GetActiveChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	active, err := r.cs.ActiveChallenge(c.Request.Context(), owner)
	if err != nil {
		respondError(c, "failed to get active challenge", err, zap.String("owner", owner))
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": active})
}

func (r *challengeRoutes) DeactivateAllChallenges(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	if err := r.cs.DeactivateAllChallenges(c.Request.Context(), owner); err != nil {
		respondError(c, "failed to deactivate challenges", err, zap.String("owner", owner))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all challenges deactivated"})
}

func (r *challengeRoutes) GetChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	challenge, err := r.cs.GetChallenge(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to get challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (r *challengeRoutes) UpdateChallenge(c *gin.Context) {
	log := logger.Logger()

	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	var req model.Challenge
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.ID = c.Param("id")

	updated, err := r.cs.UpdateChallenge(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, "failed to update challenge", err, zap.String("owner", owner), zap.String("challenge_id", req.ID))
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (r *challengeRoutes) DeleteChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	if err := r.cs.DeleteChallenge(c.Request.Context(), owner, id); err != nil {
		respondError(c, "failed to delete challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.Status(http.StatusNoContent)
}

func (r *challengeRoutes) ActivateChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	challenge, err := r.cs.ActivateChallenge(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to activate challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (r *challengeRoutes) QuitChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	challenge, err := r.cs.QuitChallenge(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to quit challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (r *challengeRoutes) CompleteChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	challenge, err := r.cs.CompleteChallenge(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to complete challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (r *challengeRoutes) FinalizeChallenge(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	result, err := r.ps.FinalizeChallenge(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to finalize challenge", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, result)
}

type UpdateStatusRequest struct {
	Status model.ChallengeStatus `json:"status" binding:"required"`
}

func (r *challengeRoutes) UpdateChallengeStatus(c *gin.Context) {
	log := logger.Logger()

	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge, err := r.cs.UpdateChallengeStatus(c.Request.Context(), owner, id, req.Status)
	if err != nil {
		respondError(c, "failed to update challenge status", err,
			zap.String("owner", owner),
			zap.String("challenge_id", id),
			zap.String("status", string(req.Status)))
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (r *challengeRoutes) GetTodayProgress(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	tasks, err := r.ps.GetTodayProgress(c.Request.Context(), owner, id, c.Query("date"))
	if err != nil {
		respondError(c, "failed to get progress", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, tasks)
}

type UpdateProgressRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (r *challengeRoutes) UpdateTodayProgress(c *gin.Context) {
	log := logger.Logger()

	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id, taskID := c.Param("id"), c.Param("task_id")

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	day, err := r.ps.UpdateTodayProgress(c.Request.Context(), owner, id, taskID, *req.Completed)
	if err != nil {
		respondError(c, "failed to update progress", err,
			zap.String("owner", owner),
			zap.String("challenge_id", id),
			zap.String("task_id", taskID))
		return
	}

	c.JSON(http.StatusOK, day)
}

func (r *challengeRoutes) GetDayStats(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	stats, err := r.ps.GetDayStats(c.Request.Context(), owner, id, c.Query("date"))
	if err != nil {
		respondError(c, "failed to get day stats", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (r *challengeRoutes) GetCurrentPhase(c *gin.Context) {
	owner, ok := ownerOf(c)
	if !ok {
		return
	}
	id := c.Param("id")

	phase, err := r.ps.GetCurrentPhase(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, "failed to get current phase", err, zap.String("owner", owner), zap.String("challenge_id", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{"phase": phase})
}
