package dto

// EnrollResponse carries the checkout redirect for a reserved seat.
type EnrollResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// WebhookAck is returned to the payment provider.
type WebhookAck struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome"`
}
