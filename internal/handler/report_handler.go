package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/RayenAkrich/EduLink-sub000/internal/service"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/response"
)

// ReportHandler exposes asynchronous export endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// RequestBulletin godoc
// @Summary Queue a student bulletin PDF
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param term path int true "Term (1-3)"
// @Success 202 {object} response.Envelope
// @Router /reports/bulletin/{id}/{term} [post]
func (h *ReportHandler) RequestBulletin(c *gin.Context) {
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

	job, err := h.reports.RequestBulletin(c.Request.Context(), actorFromContext(c), studentID, int(term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// RequestClassCSV godoc
// @Summary Queue a class averages CSV
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param term path int true "Term (1-3)"
// @Success 202 {object} response.Envelope
// @Router /reports/class/{id}/{term} [post]
func (h *ReportHandler) RequestClassCSV(c *gin.Context) {
	classID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid class id"))
		return
	}
	term, ok := parseIDParam(c, "term")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid term"))
		return
	}

	job, err := h.reports.RequestClassCSV(c.Request.Context(), actorFromContext(c), classID, int(term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid job id"))
		return
	}

	job, download, err := h.reports.Status(actorFromContext(c), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"job": job}
	if download != nil {
		payload["download"] = download
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Download godoc
// @Summary Download a generated report
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing token"))
		return
	}

	file, relPath, err := h.reports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.FileAttachment(file.Name(), filepath.Base(relPath))
}
