package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/pkg/classifier"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

const maxDocumentBytes = 10 << 20

type documentClassifier interface {
	Classify(ctx context.Context, filename string, image []byte) (classifier.Scores, error)
}

// DocumentService checks whether an upload looks like an identity document.
type DocumentService struct {
	classifier documentClassifier
	threshold  float64
	logger     *zap.Logger
}

// NewDocumentService constructs the service. threshold is the minimum document score.
func NewDocumentService(c documentClassifier, threshold float64, logger *zap.Logger) *DocumentService {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.70
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{classifier: c, threshold: threshold, logger: logger}
}

// Check classifies image and reports both scores as percentages.
func (s *DocumentService) Check(ctx context.Context, filename string, image []byte) (*models.DocumentCheck, error) {
	if len(image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if len(image) > maxDocumentBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds 10MB")
	}
	scores, err := s.classifier.Classify(ctx, filename, image)
	if err != nil {
		s.logger.Warn("document classification failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "document classifier unavailable")
	}
	return &models.DocumentCheck{
		DocumentPercentage:    percentOf(scores.DocumentScore),
		NonDocumentPercentage: percentOf(scores.NonDocumentScore),
		IsDocument:            scores.DocumentScore >= s.threshold,
	}, nil
}

func percentOf(score float64) float64 {
	return math.Round(score*100*100) / 100
}
