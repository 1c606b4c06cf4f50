package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/service"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
	"github.com/edureach/program-lottery-api/pkg/response"
)

// PreferenceHandler exposes section preference endpoints.
type PreferenceHandler struct {
	preferences *service.PreferenceService
}

// NewPreferenceHandler constructs PreferenceHandler.
func NewPreferenceHandler(preferences *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

// List godoc
// @Summary List a registration's preferences
// @Tags Preferences
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/preferences [get]
func (h *PreferenceHandler) List(c *gin.Context) {
	prefs, err := h.preferences.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Submit godoc
// @Summary Replace a registration's preferences for the named sections
// @Tags Preferences
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.SubmitPreferencesRequest true "Preference payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/preferences [put]
func (h *PreferenceHandler) Submit(c *gin.Context) {
	var req dto.SubmitPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	prefs, err := h.preferences.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Demand godoc
// @Summary Report section demand for a program
// @Tags Preferences
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/demand [get]
func (h *PreferenceHandler) Demand(c *gin.Context) {
	demand, err := h.preferences.Demand(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demand, nil)
}
