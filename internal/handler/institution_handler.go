package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type institutionService interface {
	Stats(ctx context.Context, claims *models.JWTClaims) (*models.InstitutionStats, error)
	WeeklySchedule(ctx context.Context, claims *models.JWTClaims) (models.WeeklySchedule, bool, error)
	SetPayout(ctx context.Context, req dto.PayoutRequest, claims *models.JWTClaims) error
}

// InstitutionHandler serves the institution dashboard.
type InstitutionHandler struct {
	service institutionService
}

// NewInstitutionHandler constructs the handler.
func NewInstitutionHandler(service institutionService) *InstitutionHandler {
	return &InstitutionHandler{service: service}
}

// Stats godoc
// @Summary Institution member statistics
// @Description Active members have a course whose date range contains today.
// @Tags Institution
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institution/stats [get]
func (h *InstitutionHandler) Stats(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Schedule godoc
// @Summary Weekly schedule
// @Tags Institution
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institution/schedule [get]
func (h *InstitutionHandler) Schedule(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	schedule, hit, err := h.service.WeeklySchedule(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, schedule, hit)
}

// Payout godoc
// @Summary Set payout account
// @Tags Institution
// @Accept json
// @Param payload body dto.PayoutRequest true "Payout account"
// @Success 204
// @Router /institution/payout [put]
func (h *InstitutionHandler) Payout(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.PayoutRequest
	if !bindJSON(c, &req, "invalid payout payload") {
		return
	}
	if err := h.service.SetPayout(c.Request.Context(), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
