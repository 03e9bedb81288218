package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type gradeService interface {
	CreateExam(ctx context.Context, courseID string, req dto.CreateExamRequest, claims *models.JWTClaims) (*models.Exam, error)
	Grade(ctx context.Context, examID string, req dto.GradeBatchRequest, claims *models.JWTClaims) (*models.GradeBatchResult, error)
	ListGrades(ctx context.Context, examID string, claims *models.JWTClaims) ([]models.Grade, error)
}

// GradeHandler manages exams and grades.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service gradeService) *GradeHandler {
	return &GradeHandler{service: service}
}

// CreateExam godoc
// @Summary Create exam
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/exams [post]
func (h *GradeHandler) CreateExam(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateExamRequest
	if !bindJSON(c, &req, "invalid exam payload") {
		return
	}
	exam, err := h.service.CreateExam(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Grade godoc
// @Summary Add or edit grades
// @Description Scores must lie within [0, max_score]; out-of-range records are skipped and reported.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.GradeBatchRequest true "Grades"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/grades [post]
func (h *GradeHandler) Grade(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.GradeBatchRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	result, err := h.service.Grade(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// List godoc
// @Summary List exam grades
// @Tags Grades
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	grades, err := h.service.ListGrades(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grades)
}
