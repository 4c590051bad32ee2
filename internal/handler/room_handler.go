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

// RoomHandler manages room catalog endpoints.
type RoomHandler struct {
	service *service.RoomService
}

// NewRoomHandler constructs handler.
func NewRoomHandler(svc *service.RoomService) *RoomHandler {
	return &RoomHandler{service: svc}
}

// List godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param type query string false "Filter by room type"
// @Param building query string false "Filter by building"
// @Param activeOnly query bool false "Only active rooms"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	var filter models.RoomFilter
	filter.Type = strings.ToUpper(c.Query("type"))
	filter.Building = c.Query("building")
	filter.ActiveOnly = c.Query("activeOnly") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	rooms, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.UpdateRoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	var req service.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Deactivate godoc
// @Summary Deactivate room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 204
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
