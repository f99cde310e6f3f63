package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradua/ceremonia-api/internal/service"
	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
	"github.com/gradua/ceremonia-api/pkg/export"
	"github.com/gradua/ceremonia-api/pkg/response"
)

// AttendanceHandler exposes the marking and listing endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{
		attendance: attendance,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
	}
}

// Mark godoc
// @Summary Mark a student present
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// List godoc
// @Summary List marked attendance for a ceremony
// @Tags Attendance
// @Produce json
// @Param date query string false "Ceremony date (YYYY-MM-DD, defaults to today)"
// @Param ceremony query string false "Ceremony letter when a date has several"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	list, err := h.attendance.List(c.Request.Context(), ceremonySelector(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// Export godoc
// @Summary Export attendance as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param date query string false "Ceremony date (YYYY-MM-DD, defaults to today)"
// @Param ceremony query string false "Ceremony letter when a date has several"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	dataset, title, err := h.attendance.ExportDataset(c.Request.Context(), ceremonySelector(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	filename := strings.ReplaceAll(title, " ", "_")

	var payload []byte
	var contentType string
	switch format {
	case "csv":
		payload, err = h.csv.Render(dataset)
		contentType = "text/csv"
		filename += ".csv"
	case "pdf":
		payload, err = h.pdf.Render(dataset, title)
		contentType = "application/pdf"
		filename += ".pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, payload)
}
