package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/export"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type progressService interface {
	Progress(ctx context.Context, courseID string, claims *models.JWTClaims) (*models.CourseProgress, bool, error)
	Export(ctx context.Context, courseID string, format export.Format, claims *models.JWTClaims) ([]byte, error)
}

// ProgressHandler serves course completion reports.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Progress godoc
// @Summary Course progress
// @Description Per-student and class completion percentages. Students only receive their own row.
// @Tags Progress
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/progress [get]
func (h *ProgressHandler) Progress(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	report, hit, err := h.service.Progress(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, report, hit)
}

// Export godoc
// @Summary Export course progress
// @Tags Progress
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /courses/{id}/progress/export [get]
func (h *ProgressHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	courseID := c.Param("id")
	body, err := h.service.Export(c.Request.Context(), courseID, format, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%s.%s"`, courseID, format))
	c.Data(http.StatusOK, format.ContentType(), body)
}
