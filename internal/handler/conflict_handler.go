package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// ConflictHandler manages the conflict ledger endpoints.
type ConflictHandler struct {
	service *service.ConflictService
}

// NewConflictHandler constructs handler.
func NewConflictHandler(svc *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// ListBySchedule godoc
// @Summary List a schedule's conflict ledger
// @Tags Conflicts
// @Produce json
// @Param id path string true "Schedule ID"
// @Param unresolvedOnly query bool false "Only open conflicts"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/conflicts [get]
func (h *ConflictHandler) ListBySchedule(c *gin.Context) {
	scheduleID := c.Param("id")
	var err error
	var conflicts interface{}
	if c.Query("unresolvedOnly") == "true" {
		conflicts, err = h.service.ListUnresolved(c.Request.Context(), scheduleID)
	} else {
		conflicts, err = h.service.ListBySchedule(c.Request.Context(), scheduleID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// Record godoc
// @Summary Record a conflict manually
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body service.RecordConflictRequest true "Conflict payload"
// @Success 201 {object} response.Envelope
// @Router /conflicts [post]
func (h *ConflictHandler) Record(c *gin.Context) {
	var req service.RecordConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	conflict, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, conflict)
}

// Resolve godoc
// @Summary Resolve a conflict
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param payload body service.ResolveConflictRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	var req service.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	resolverID := ""
	if actor := actorFromContext(c); actor != nil {
		resolverID = *actor
	}
	conflict, err := h.service.Resolve(c.Request.Context(), c.Param("id"), resolverID, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflict, nil)
}
