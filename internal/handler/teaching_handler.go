package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/service"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/response"
)

// TeachingHandler exposes subject assignment endpoints.
type TeachingHandler struct {
	teachings *service.TeachingService
}

// NewTeachingHandler constructs TeachingHandler.
func NewTeachingHandler(teachings *service.TeachingService) *TeachingHandler {
	return &TeachingHandler{teachings: teachings}
}

// List godoc
// @Summary List teachings
// @Tags Teachings
// @Produce json
// @Security BearerAuth
// @Param classId query int false "Filter by class"
// @Param teacherId query int false "Filter by teacher"
// @Param subject query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachings [get]
func (h *TeachingHandler) List(c *gin.Context) {
	var filter models.TeachingFilter
	filter.ClassID = parseInt64Query(c, "classId")
	filter.TeacherID = parseInt64Query(c, "teacherId")
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	filter.Page = parseIntQuery(c, "page", 1)
	filter.PageSize = parseIntQuery(c, "limit", 20)

	teachings, pagination, err := h.teachings.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachings, pagination)
}

// Get godoc
// @Summary Get a teaching
// @Tags Teachings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teaching ID"
// @Success 200 {object} response.Envelope
// @Router /teachings/{id} [get]
func (h *TeachingHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teaching id"))
		return
	}
	teaching, err := h.teachings.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teaching, nil)
}

// Create godoc
// @Summary Assign a subject to a teacher
// @Tags Teachings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTeachingRequest true "Teaching payload"
// @Success 201 {object} response.Envelope
// @Router /teachings [post]
func (h *TeachingHandler) Create(c *gin.Context) {
	var req service.CreateTeachingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teaching, err := h.teachings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teaching)
}

// Update godoc
// @Summary Update a teaching
// @Tags Teachings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teaching ID"
// @Param payload body service.UpdateTeachingRequest true "Teaching payload"
// @Success 200 {object} response.Envelope
// @Router /teachings/{id} [put]
func (h *TeachingHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teaching id"))
		return
	}
	var req service.UpdateTeachingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teaching, err := h.teachings.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teaching, nil)
}

// Delete godoc
// @Summary Remove a teaching
// @Tags Teachings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teaching ID"
// @Success 204
// @Router /teachings/{id} [delete]
func (h *TeachingHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teaching id"))
		return
	}
	if err := h.teachings.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
