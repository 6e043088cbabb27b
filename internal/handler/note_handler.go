package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/service"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/response"
)

// NoteHandler exposes score entry and bulletin endpoints.
type NoteHandler struct {
	notes *service.NoteService
}

// NewNoteHandler constructs NoteHandler.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// List godoc
// @Summary List notes
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param studentId query int false "Filter by student"
// @Param teachingId query int false "Filter by teaching"
// @Param classId query int false "Filter by class"
// @Param term query int false "Filter by term"
// @Param type query string false "Filter by note type"
// @Success 200 {object} response.Envelope
// @Router /notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	var filter models.NoteFilter
	filter.StudentID = parseInt64Query(c, "studentId")
	filter.TeachingID = parseInt64Query(c, "teachingId")
	filter.ClassID = parseInt64Query(c, "classId")
	filter.Term = parseIntQuery(c, "term", 0)
	filter.Type = models.NoteType(c.Query("type"))

	notes, err := h.notes.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}

// Create godoc
// @Summary Record a score
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateNoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Router /notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	var req service.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	note, err := h.notes.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// Update godoc
// @Summary Correct a score
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param payload body service.UpdateNoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /notes/{id} [put]
func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note id"))
		return
	}
	var req service.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	note, err := h.notes.Update(c.Request.Context(), actorFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Delete godoc
// @Summary Delete a score
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 204
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note id"))
		return
	}
	if err := h.notes.Delete(c.Request.Context(), actorFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TermReport godoc
// @Summary Student term bulletin
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param term path int true "Term (1-3)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/report/{term} [get]
func (h *NoteHandler) TermReport(c *gin.Context) {
	studentID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}
	term, ok := parseIDParam(c, "term")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid term"))
		return
	}

	report, err := h.notes.TermReport(c.Request.Context(), actorFromContext(c), studentID, int(term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
