package models

import "time"

// Enrollment links a student to a course. It is only created from a paid Payment.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	PaymentID string    `db:"payment_id" json:"payment_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Payment tracks one checkout session for a course seat.
type Payment struct {
	ID                string     `db:"id" json:"id"`
	StudentID         string     `db:"student_id" json:"student_id"`
	CourseID          string     `db:"course_id" json:"course_id"`
	ProviderReference string     `db:"provider_reference" json:"provider_reference"`
	CheckoutURL       string     `db:"checkout_url" json:"checkout_url"`
	Amount            int64      `db:"amount" json:"amount"`
	Currency          string     `db:"currency" json:"currency"`
	Paid              bool       `db:"paid" json:"paid"`
	RefundRequired    bool       `db:"refund_required" json:"refund_required"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ConfirmationOutcome describes what a payment confirmation did.
type ConfirmationOutcome string

const (
	ConfirmationEnrolled       ConfirmationOutcome = "enrolled"
	ConfirmationDuplicate      ConfirmationOutcome = "duplicate"
	ConfirmationUnknown        ConfirmationOutcome = "unknown_reference"
	ConfirmationIgnored        ConfirmationOutcome = "ignored_event"
	ConfirmationRefundRequired ConfirmationOutcome = "refund_required"
)
