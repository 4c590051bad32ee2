package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// TemplateHandler manages template endpoints.
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: svc}
}

type applyTemplateRequest struct {
	ScheduleID string `json:"schedule_id" binding:"required"`
}

// List godoc
// @Summary List templates
// @Tags Templates
// @Produce json
// @Param activeOnly query bool false "Only active templates"
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context(), c.Query("activeOnly") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get template with entries
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.CreateTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// AddEntry godoc
// @Summary Add an entry to a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.AddTemplateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Router /templates/{id}/entries [post]
func (h *TemplateHandler) AddEntry(c *gin.Context) {
	var req service.AddTemplateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.AddEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Apply godoc
// @Summary Apply a template to a schedule
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body applyTemplateRequest true "Target schedule"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/apply [post]
func (h *TemplateHandler) Apply(c *gin.Context) {
	var req applyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Apply(c.Request.Context(), c.Param("id"), req.ScheduleID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Deactivate godoc
// @Summary Deactivate template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
