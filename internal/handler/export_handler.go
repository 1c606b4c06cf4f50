package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	"github.com/edureach/program-lottery-api/internal/service"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
	"github.com/edureach/program-lottery-api/pkg/response"
)

// ExportHandler exposes roster export endpoints.
type ExportHandler struct {
	exports *service.RosterExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.RosterExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Queue godoc
// @Summary Queue a roster export for a program
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body dto.RosterExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /programs/{id}/exports [post]
func (h *ExportHandler) Queue(c *gin.Context) {
	var req dto.RosterExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}
	result, err := h.exports.Queue(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Status godoc
// @Summary Get an export job's status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Router /downloads/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := "text/csv"
	if download.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	c.File(download.File.Name())
}
