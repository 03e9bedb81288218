// Package classifier calls the identity document classification service.
package classifier

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Scores are the classifier's confidences, each in [0,1].
type Scores struct {
	DocumentScore    float64 `json:"document_score"`
	NonDocumentScore float64 `json:"non_document_score"`
}

// Client is a resty-backed classifier client.
type Client struct {
	http *resty.Client
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(1).
			SetHeader("Accept", "application/json"),
	}
}

// Classify uploads image as multipart field "file" and returns the scores.
func (c *Client) Classify(ctx context.Context, filename string, image []byte) (Scores, error) {
	var scores Scores
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(image)).
		SetResult(&scores).
		Post("/classify")
	if err != nil {
		return Scores{}, fmt.Errorf("classify request: %w", err)
	}
	if resp.IsError() {
		return Scores{}, fmt.Errorf("classify request: status %d", resp.StatusCode())
	}
	if !inUnit(scores.DocumentScore) || !inUnit(scores.NonDocumentScore) {
		return Scores{}, fmt.Errorf("classify response out of range: %+v", scores)
	}
	return scores, nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
