package models

import "time"

// UserRole identifies which profile a user account owns.
type UserRole string

const (
	RoleInstitution UserRole = "INSTITUTION"
	RoleLecturer    UserRole = "LECTURER"
	RoleStudent     UserRole = "STUDENT"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleInstitution, RoleLecturer, RoleStudent:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Verified  bool      `db:"verified" json:"verified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Institution is the profile of an institution account.
type Institution struct {
	UserID          string    `db:"user_id" json:"user_id"`
	Name            string    `db:"name" json:"name"`
	PayoutAccountID *string   `db:"payout_account_id" json:"payout_account_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// HasPayoutDestination reports whether course payments can be routed to the institution.
func (i *Institution) HasPayoutDestination() bool {
	return i != nil && i.PayoutAccountID != nil && *i.PayoutAccountID != ""
}

// Lecturer is the profile of a lecturer account.
type Lecturer struct {
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Student is the profile of a student account.
type Student struct {
	UserID        string    `db:"user_id" json:"user_id"`
	GuardianEmail *string   `db:"guardian_email" json:"guardian_email,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// StudentContact carries the addresses used for student notifications.
type StudentContact struct {
	UserID        string  `db:"user_id"`
	Email         string  `db:"email"`
	FullName      string  `db:"full_name"`
	GuardianEmail *string `db:"guardian_email"`
}

// Recipients lists the student address followed by the guardian address when present.
func (s StudentContact) Recipients() []string {
	out := []string{s.Email}
	if s.GuardianEmail != nil && *s.GuardianEmail != "" {
		out = append(out, *s.GuardianEmail)
	}
	return out
}
