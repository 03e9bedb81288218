package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type userRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateInstitution(ctx context.Context, exec sqlx.ExtContext, inst *models.Institution) error
	CreateLecturer(ctx context.Context, exec sqlx.ExtContext, lecturer *models.Lecturer) error
	CreateStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

// UserService registers accounts. The role profile is created together with the account.
type UserService struct {
	tx        txProvider
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(tx txProvider, repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{tx: tx, repo: repo, validator: validate, logger: logger}
}

// Signup stores the account and its institution, lecturer or student profile in one transaction.
func (s *UserService) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	if _, err := s.repo.FindByID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	user := &models.User{
		ID:       req.UserID,
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
		Verified: req.Verified,
	}
	var profile any
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, user); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
		var err error
		profile, err = s.createProfile(ctx, tx, user, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &dto.SignupResponse{User: *user, Profile: profile}, nil
}

// createProfile is the role profile factory.
func (s *UserService) createProfile(ctx context.Context, tx sqlx.ExtContext, user *models.User, req dto.SignupRequest) (any, error) {
	var err error
	var profile any
	switch user.Role {
	case models.RoleInstitution:
		inst := &models.Institution{UserID: user.ID, Name: strings.TrimSpace(req.InstitutionName)}
		err = s.repo.CreateInstitution(ctx, tx, inst)
		profile = inst
	case models.RoleLecturer:
		lecturer := &models.Lecturer{UserID: user.ID}
		err = s.repo.CreateLecturer(ctx, tx, lecturer)
		profile = lecturer
	case models.RoleStudent:
		student := &models.Student{UserID: user.ID}
		if guardian := strings.TrimSpace(req.GuardianEmail); guardian != "" {
			student.GuardianEmail = &guardian
		}
		err = s.repo.CreateStudent(ctx, tx, student)
		profile = student
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported role")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	return profile, nil
}
