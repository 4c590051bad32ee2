package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// TimeSlotHandler manages time-slot catalog endpoints.
type TimeSlotHandler struct {
	service *service.TimeSlotService
}

// NewTimeSlotHandler constructs handler.
func NewTimeSlotHandler(svc *service.TimeSlotService) *TimeSlotHandler {
	return &TimeSlotHandler{service: svc}
}

// List godoc
// @Summary List time slots
// @Tags TimeSlots
// @Produce json
// @Param dayOfWeek query string false "Filter by day"
// @Param activeOnly query bool false "Only active slots"
// @Success 200 {object} response.Envelope
// @Router /time-slots [get]
func (h *TimeSlotHandler) List(c *gin.Context) {
	filter := models.TimeSlotFilter{
		DayOfWeek:  strings.ToUpper(c.Query("dayOfWeek")),
		ActiveOnly: c.Query("activeOnly") == "true",
	}
	slots, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get time slot
// @Tags TimeSlots
// @Produce json
// @Param id path string true "Time slot ID"
// @Success 200 {object} response.Envelope
// @Router /time-slots/{id} [get]
func (h *TimeSlotHandler) Get(c *gin.Context) {
	slot, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Create time slot
// @Tags TimeSlots
// @Accept json
// @Produce json
// @Param payload body service.CreateTimeSlotRequest true "Time slot payload"
// @Success 201 {object} response.Envelope
// @Router /time-slots [post]
func (h *TimeSlotHandler) Create(c *gin.Context) {
	var req service.CreateTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Deactivate godoc
// @Summary Deactivate time slot
// @Tags TimeSlots
// @Produce json
// @Param id path string true "Time slot ID"
// @Success 204
// @Router /time-slots/{id} [delete]
func (h *TimeSlotHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
