package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradua/ceremonia-api/internal/models"
	"github.com/gradua/ceremonia-api/internal/service"
	"github.com/gradua/ceremonia-api/pkg/response"
)

// StudentHandler exposes roster lookup endpoints.
type StudentHandler struct {
	roster *service.RosterService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(roster *service.RosterService) *StudentHandler {
	return &StudentHandler{roster: roster}
}

func ceremonySelector(c *gin.Context) models.CeremonySelector {
	return models.CeremonySelector{
		Date:     c.Query("date"),
		Ceremony: c.Query("ceremony"),
	}
}

// List godoc
// @Summary List the ceremony roster
// @Tags Students
// @Produce json
// @Param date query string false "Ceremony date (YYYY-MM-DD, defaults to today)"
// @Param ceremony query string false "Ceremony letter when a date has several"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	ceremony, err := h.roster.Locate(ctx, ceremonySelector(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.roster.Roster(ctx, ceremony)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"ceremony": ceremony.BaseName(),
		"active":   ceremony.Active,
		"count":    len(roster),
		"students": roster,
	})
}

// Get godoc
// @Summary Look a student up by code
// @Tags Students
// @Produce json
// @Param code path string true "Student code"
// @Param date query string false "Ceremony date (YYYY-MM-DD, defaults to today)"
// @Param ceremony query string false "Ceremony letter when a date has several"
// @Success 200 {object} response.Envelope
// @Router /students/{code} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	ceremony, err := h.roster.Locate(ctx, ceremonySelector(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.roster.Find(ctx, ceremony, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}
