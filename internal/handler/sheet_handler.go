package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradua/ceremonia-api/internal/service"
	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
	"github.com/gradua/ceremonia-api/pkg/response"
)

// SheetHandler exposes administrative ceremony operations.
type SheetHandler struct {
	admin *service.SheetAdminService
}

// NewSheetHandler constructs SheetHandler.
func NewSheetHandler(admin *service.SheetAdminService) *SheetHandler {
	return &SheetHandler{admin: admin}
}

// List godoc
// @Summary List workbook ceremonies
// @Tags Sheets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sheets [get]
func (h *SheetHandler) List(c *gin.Context) {
	infos, err := h.admin.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(infos), "sheets": infos})
}

// SetState godoc
// @Summary Activate or deactivate a ceremony
// @Tags Sheets
// @Accept json
// @Produce json
// @Param payload body service.SetSheetStateRequest true "State payload"
// @Success 200 {object} response.Envelope
// @Router /sheets/set-state [post]
func (h *SheetHandler) SetState(c *gin.Context) {
	var req service.SetSheetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	info, err := h.admin.SetState(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info)
}
