package dto

import "github.com/noah-isme/edu-scheduling-api/internal/models"

// SignupRequest registers an account together with its role profile.
// The identity provider has already authenticated the user and owns the id.
type SignupRequest struct {
	UserID          string          `json:"user_id" validate:"required,uuid"`
	Email           string          `json:"email" validate:"required,email"`
	FullName        string          `json:"full_name" validate:"required,max=200"`
	Role            models.UserRole `json:"role" validate:"required,oneof=INSTITUTION LECTURER STUDENT"`
	Verified        bool            `json:"verified"`
	InstitutionName string          `json:"institution_name" validate:"required_if=Role INSTITUTION,max=200"`
	GuardianEmail   string          `json:"guardian_email" validate:"omitempty,email"`
}

// SignupResponse returns the created account.
type SignupResponse struct {
	User    models.User `json:"user"`
	Profile any         `json:"profile"`
}
