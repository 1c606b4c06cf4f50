package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
	"github.com/edureach/program-lottery-api/pkg/response"
)

type lotteryRunner interface {
	Run(ctx context.Context, programID string, req dto.RunLotteryRequest) (*dto.RunLotteryResponse, error)
	History(ctx context.Context, programID string, query dto.LotteryRunQuery) ([]models.LotteryRun, error)
}

// LotteryHandler exposes lottery run endpoints.
type LotteryHandler struct {
	lottery lotteryRunner
}

// NewLotteryHandler constructs LotteryHandler.
func NewLotteryHandler(lottery lotteryRunner) *LotteryHandler {
	return &LotteryHandler{lottery: lottery}
}

// Run godoc
// @Summary Run the lottery for a program
// @Tags Lottery
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body dto.RunLotteryRequest false "Run options"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/lottery [post]
func (h *LotteryHandler) Run(c *gin.Context) {
	// The body is optional: an empty POST runs with configured defaults.
	var req dto.RunLotteryRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.lottery.Run(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary List recorded lottery runs for a program
// @Tags Lottery
// @Produce json
// @Param id path string true "Program ID"
// @Param status query string false "Filter by run status"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/lottery/runs [get]
func (h *LotteryHandler) History(c *gin.Context) {
	var query dto.LotteryRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	runs, err := h.lottery.History(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}
