package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

type registrationService interface {
	Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error)
}

// RegistrationHandler creates accounts and their role profiles.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(service registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Signup godoc
// @Summary Register account
// @Description Stores the user and its institution, lecturer or student profile together.
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registration/signup [post]
func (h *RegistrationHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !bindJSON(c, &req, "invalid signup payload") {
		return
	}
	res, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
