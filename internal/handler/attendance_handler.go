package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, courseID string, req dto.MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceBatchResult, error)
	ListLecture(ctx context.Context, courseID string, lecture int, claims *models.JWTClaims) ([]models.Attendance, error)
}

// AttendanceHandler records and lists per-lecture attendance.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Mark godoc
// @Summary Mark attendance
// @Description Upserts statuses for one lecture. Unknown statuses and students outside the course are skipped and reported.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.MarkAttendanceRequest true "Attendance batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	result, err := h.service.Mark(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListLecture godoc
// @Summary List attendance for a lecture
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Param lecture path int true "Lecture number"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/{lecture} [get]
func (h *AttendanceHandler) ListLecture(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	lecture, err := strconv.Atoi(c.Param("lecture"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lecture must be a number"))
		return
	}
	records, err := h.service.ListLecture(c.Request.Context(), c.Param("id"), lecture, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
