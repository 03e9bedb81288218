package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// UserRepository persists accounts and their role profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a user row. The id comes from the identity provider.
func (r *UserRepository) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, email, full_name, role, verified, created_at, updated_at)
        VALUES (:id, :email, :full_name, :role, :verified, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID returns a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, verified, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail reports whether the email is already registered.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email); err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// CreateInstitution inserts an institution profile.
func (r *UserRepository) CreateInstitution(ctx context.Context, exec sqlx.ExtContext, inst *models.Institution) error {
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	const query = `INSERT INTO institutions (user_id, name, payout_account_id, created_at, updated_at)
        VALUES (:user_id, :name, :payout_account_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, inst); err != nil {
		return fmt.Errorf("insert institution: %w", err)
	}
	return nil
}

// CreateLecturer inserts a lecturer profile.
func (r *UserRepository) CreateLecturer(ctx context.Context, exec sqlx.ExtContext, lecturer *models.Lecturer) error {
	lecturer.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO lecturers (user_id, created_at) VALUES (:user_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, lecturer); err != nil {
		return fmt.Errorf("insert lecturer: %w", err)
	}
	return nil
}

// CreateStudent inserts a student profile.
func (r *UserRepository) CreateStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	student.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO students (user_id, guardian_email, created_at) VALUES (:user_id, :guardian_email, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// IsLecturer reports whether id has a lecturer profile.
func (r *UserRepository) IsLecturer(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM lecturers WHERE user_id = $1)`, id); err != nil {
		return false, fmt.Errorf("check lecturer: %w", err)
	}
	return exists, nil
}

// StudentContact returns the notification addresses for a student.
func (r *UserRepository) StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	const query = `SELECT u.id AS user_id, u.email, u.full_name, s.guardian_email
        FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1`
	var contact models.StudentContact
	if err := r.db.GetContext(ctx, &contact, query, studentID); err != nil {
		return nil, err
	}
	return &contact, nil
}

// LockLecturer locks the lecturer profile row so concurrent assignments serialize.
// It returns sql.ErrNoRows when id is not a lecturer.
func (r *UserRepository) LockLecturer(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var userID string
	return sqlx.GetContext(ctx, r.exec(exec), &userID, `SELECT user_id FROM lecturers WHERE user_id = $1 FOR UPDATE`, id)
}
