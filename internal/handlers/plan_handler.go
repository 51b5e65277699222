package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
)

// PlanHandler serves the subscription plan endpoints
type PlanHandler struct {
	service ports.PlanService
	logger  *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(service ports.PlanService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the plan routes. Write routes require the admin role.
func (h *PlanHandler) Register(r gin.IRouter, requireAdmin gin.HandlerFunc) {
	plans := r.Group("/plans")
	plans.GET("", h.List)
	plans.POST("", requireAdmin, h.Create)
	plans.GET("/:id", h.Get)
	plans.PATCH("/:id", requireAdmin, h.Update)
	plans.DELETE("/:id", requireAdmin, h.Archive)
}

type createPlanRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	DurationDays int    `json:"duration_days"`
}

type updatePlanRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Price        *int64  `json:"price"`
	DurationDays *int    `json:"duration_days"`
	IsArchive    *bool   `json:"is_archive"`
}

// List returns plans, newest first. Archived plans are visible to admin
// callers only.
func (h *PlanHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	plans, err := h.service.List(c.Request.Context(), ports.ListPlansQuery{
		IncludeArchived: identity.IsAdmin(),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plans)
}

// Create adds a new plan
func (h *PlanHandler) Create(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	plan, err := h.service.Create(c.Request.Context(), ports.CreatePlanRequest{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// Get retrieves a plan by ID
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Update applies a partial update to a plan
func (h *PlanHandler) Update(c *gin.Context) {
	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	plan, err := h.service.Update(c.Request.Context(), c.Param("id"), ports.UpdatePlanRequest{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		IsArchive:    req.IsArchive,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Archive soft-deletes a plan
func (h *PlanHandler) Archive(c *gin.Context) {
	if err := h.service.Archive(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "success"})
}
