package api

import (
	"net/http"

	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/internal/report"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type createStateRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description" binding:"required"`
	Status      schema.Status `json:"status"`
}

type updateStateRequest struct {
	Status schema.Status `json:"status" binding:"required"`
}

func (h *Handler) CreateState(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())
	if id.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is not logged in"})
		return
	}

	var input createStateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "error", msgInvalidBody, err)
		return
	}

	rec, err := h.Store.Insert(c.Request.Context(), schema.StateRecord{
		Name:        input.Name,
		Description: input.Description,
		Status:      input.Status,
		CreatedBy:   id.Name,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, rec)
	case errors.Is(err, engine.ErrDuplicateName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "State already exists"})
	case errors.Is(err, engine.ErrInvalidStatus):
		h.badRequest(c, "error", msgInvalidStatus, err)
	case errors.Is(err, engine.ErrInvalidRecord):
		h.badRequest(c, "error", msgInvalidRecord, err)
	default:
		h.internalError(c, "error", "creating state", err)
	}
}

func (h *Handler) GetState(c *gin.Context) {
	rec, err := h.Store.FindByName(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "State not found"})
	default:
		h.internalError(c, "error", "fetching state", err)
	}
}

func (h *Handler) UpdateState(c *gin.Context) {
	var input updateStateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "error", msgInvalidBody, err)
		return
	}

	rec, err := h.Store.UpdateStatus(c.Request.Context(), c.Param("name"), input.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "State not found"})
	case errors.Is(err, engine.ErrInvalidStatus):
		h.badRequest(c, "error", msgInvalidStatus, err)
	default:
		h.internalError(c, "error", "updating state", err)
	}
}

func (h *Handler) DeleteState(c *gin.Context) {
	err := h.Store.DeleteByName(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "State deleted successfully"})
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "State not found"})
	default:
		h.internalError(c, "error", "deleting state", err)
	}
}

func (h *Handler) GetAllStates(c *gin.Context) {
	states, err := h.Store.FindAll(c.Request.Context())
	if err != nil {
		h.internalError(c, "error", "fetching states", err)
		return
	}
	c.JSON(http.StatusOK, states)
}

func (h *Handler) GetSummary(c *gin.Context) {
	n := report.ParseTopN(c.Query("n"))
	interval := report.ParseInterval(c.Query("interval"))

	summary, err := h.Reports.BuildSummary(c.Request.Context(), n, interval)
	if err != nil {
		h.internalError(c, "error", "generating summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
