package dto

// PayoutRequest sets the institution's payout destination account.
type PayoutRequest struct {
	PayoutAccountID string `json:"payout_account_id" validate:"required,startswith=acct_"`
}
