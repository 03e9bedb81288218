package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBytes = 64 << 10
)

type enrollmentService interface {
	Enroll(ctx context.Context, courseID string, claims *models.JWTClaims) (*dto.EnrollResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (models.ConfirmationOutcome, error)
}

// EnrollmentHandler starts paid enrollments and receives provider confirmations.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Enroll godoc
// @Summary Apply for a course
// @Description Reserves a seat and returns the checkout URL. The enrollment exists only after payment is confirmed.
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	checkout, err := h.service.Enroll(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, checkout)
}

// Webhook godoc
// @Summary Payment provider webhook
// @Description Verifies the provider signature and confirms the payment. Repeated deliveries are acknowledged without side effects.
// @Tags Enrollment
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookAck
// @Failure 400 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *EnrollmentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable webhook body"))
		return
	}
	outcome, err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.WebhookAck{OK: true, Outcome: string(outcome)})
}
