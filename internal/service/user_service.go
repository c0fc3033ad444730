package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByInstitutionID(ctx context.Context, institutionID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	SetAssigned(ctx context.Context, id string, assigned bool) error
	UpdateMaxStudents(ctx context.Context, id string, max int) error
	PurgeCascade(ctx context.Context, userID string) error
}

type departmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// CreateUserRequest is the payload for coordinator-driven account creation.
type CreateUserRequest struct {
	FullName      string          `json:"full_name" validate:"required"`
	InstitutionID string          `json:"institution_id" validate:"required"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone"`
	Role          models.UserRole `json:"role" validate:"required,oneof=ADMIN COORDINATOR SUPERVISOR STUDENT"`
	MaxStudents   int             `json:"max_students" validate:"gte=0"`
}

// UserService is the identity store facade.
type UserService struct {
	repo      userRepository
	depts     departmentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, depts departmentReader, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, depts: depts, validator: validate, logger: logger}
}

// GetByID loads a user or reports NotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// CreateAccount registers a user inside the acting coordinator's department.
// The initial password is the bcrypt hash of the institution ID; the account
// holder is expected to change it on first login.
func (s *UserService) CreateAccount(ctx context.Context, coordinatorID string, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	coordinator, err := s.GetByID(ctx, coordinatorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByInstitutionID(ctx, req.InstitutionID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already exists")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.InstitutionID), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		FullName:      req.FullName,
		InstitutionID: req.InstitutionID,
		Email:         req.Email,
		Phone:         req.Phone,
		PasswordHash:  string(hash),
		Role:          req.Role,
		DepartmentID:  coordinator.DepartmentID,
		Status:        models.StatusActive,
		MaxStudents:   req.MaxStudents,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// List returns users matching the filter scoped to the caller's department,
// along with pagination metadata.
func (s *UserService) List(ctx context.Context, callerID string, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	caller, err := s.GetByID(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	if caller.DepartmentID != nil {
		filter.DepartmentID = *caller.DepartmentID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// DepartmentName resolves the display name of a user's department,
// returning "" when the user belongs to none.
func (s *UserService) DepartmentName(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.DepartmentID == nil {
		return "", nil
	}
	dept, err := s.depts.FindByID(ctx, *user.DepartmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept.Name, nil
}
