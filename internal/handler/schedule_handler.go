package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type conflictChecker interface {
	Check(ctx context.Context, req dto.ConflictCheckRequest, claims *models.JWTClaims) (*dto.ConflictCheckResponse, error)
}

// ScheduleHandler answers weekly slot conflict checks.
type ScheduleHandler struct {
	service conflictChecker
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(service conflictChecker) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Conflicts godoc
// @Summary Check schedule conflict
// @Description Reports the first course in the caller's timetable overlapping the slot. Touching slots do not conflict.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedule/conflicts [post]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ConflictCheckRequest
	if !bindJSON(c, &req, "invalid conflict check payload") {
		return
	}
	result, err := h.service.Check(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
