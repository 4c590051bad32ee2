package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// ScheduleHandler manages schedule container endpoints.
type ScheduleHandler struct {
	service *service.ScheduleService
	changes *service.ChangeService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService, changes *service.ChangeService) *ScheduleHandler {
	return &ScheduleHandler{service: svc, changes: changes}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param type query string false "Filter by schedule type"
// @Param academicYearId query string false "Filter by academic year"
// @Param activeOnly query bool false "Only active schedules"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.Type = strings.ToUpper(c.Query("type"))
	filter.AcademicYearID = c.Query("academicYearId")
	filter.ActiveOnly = c.Query("activeOnly") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	sched, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Create godoc
// @Summary Create schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sched, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sched)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sched, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Deactivate godoc
// @Summary Deactivate schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListChanges godoc
// @Summary List schedule change history
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/changes [get]
func (h *ScheduleHandler) ListChanges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	changes, err := h.changes.ListBySchedule(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}
