package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

// maxUploadBytes leaves room above the service limit so oversize files get its message.
const maxUploadBytes = 10<<20 + 1

type documentChecker interface {
	Check(ctx context.Context, filename string, image []byte) (*models.DocumentCheck, error)
}

// DocumentHandler classifies uploaded identity documents.
type DocumentHandler struct {
	service documentChecker
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentChecker) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Classify godoc
// @Summary Classify identity document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /documents/classify [post]
func (h *DocumentHandler) Classify(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload"))
		return
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), header.Filename, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
