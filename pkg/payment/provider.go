// Package payment adapts the external checkout provider.
package payment

import (
	"context"
	"errors"
	"time"
)

// EventCheckoutCompleted is the only provider event that confirms a payment.
const EventCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// CheckoutRequest describes a one-item checkout addressed to a payout destination.
type CheckoutRequest struct {
	CustomerEmail     string
	AmountMinor       int64
	Currency          string
	ProductName       string
	PayoutDestination string
	SuccessURL        string
	CancelURL         string
	ExpiresAt         time.Time
	Metadata          map[string]string
}

// CheckoutSession is the provider-hosted flow the student is redirected to.
type CheckoutSession struct {
	URL       string
	Reference string
}

// Event is a verified webhook notification.
type Event struct {
	ID        string
	Type      string
	Reference string
}

// Provider is the checkout collaborator used by the enrollment workflow.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	IsPaid(ctx context.Context, reference string) (bool, error)
}
