package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// EntryHandler exposes the assignment engine over HTTP.
type EntryHandler struct {
	service *service.AssignmentService
	changes *service.ChangeService
}

// NewEntryHandler constructs handler.
func NewEntryHandler(svc *service.AssignmentService, changes *service.ChangeService) *EntryHandler {
	return &EntryHandler{service: svc, changes: changes}
}

// entryWriteResult is the write-path payload: the entry plus whatever
// conflict rows the scan recorded alongside it.
type entryWriteResult struct {
	Entry     *models.ScheduleEntry     `json:"entry"`
	Conflicts []models.ScheduleConflict `json:"conflicts"`
}

type deactivateEntryRequest struct {
	Reason string `json:"reason"`
}

// ListBySchedule godoc
// @Summary List active entries of a schedule
// @Tags Entries
// @Produce json
// @Param id path string true "Schedule ID"
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param roomId query string false "Filter by room"
// @Param timeSlotId query string false "Filter by time slot"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/entries [get]
func (h *EntryHandler) ListBySchedule(c *gin.Context) {
	filter := models.EntryFilter{
		ClassID:    c.Query("classId"),
		TeacherID:  c.Query("teacherId"),
		RoomID:     c.Query("roomId"),
		TimeSlotID: c.Query("timeSlotId"),
	}
	entries, err := h.service.ListActiveEntries(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Create godoc
// @Summary Create schedule entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param payload body service.CreateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Router /entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, conflicts, err := h.service.CreateEntry(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entryWriteResult{Entry: entry, Conflicts: conflicts})
}

// Update godoc
// @Summary Update schedule entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.UpdateEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /entries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, conflicts, err := h.service.UpdateEntry(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entryWriteResult{Entry: entry, Conflicts: conflicts}, nil)
}

// Deactivate godoc
// @Summary Deactivate schedule entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204
// @Router /entries/{id} [delete]
func (h *EntryHandler) Deactivate(c *gin.Context) {
	var req deactivateEntryRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.DeactivateEntry(c.Request.Context(), c.Param("id"), req.Reason, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListChanges godoc
// @Summary List an entry's audit trail
// @Tags Entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /entries/{id}/changes [get]
func (h *EntryHandler) ListChanges(c *gin.Context) {
	changes, err := h.changes.ListByEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}
