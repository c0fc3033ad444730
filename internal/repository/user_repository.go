package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

const userColumns = `id, full_name, institution_id, email, password_hash, phone, role, department_id, status, is_assigned, max_students, created_at, updated_at`

// UserRepository persists identity records.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID fetches a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByInstitutionID fetches a user by their institution identifier.
func (r *UserRepository) FindByInstitutionID(ctx context.Context, institutionID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE institution_id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, institutionID); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	const query = `INSERT INTO users
	(id, full_name, institution_id, email, password_hash, phone, role, department_id, status, is_assigned, max_students, created_at, updated_at)
	VALUES (:id, :full_name, :institution_id, :email, :password_hash, :phone, :role, :department_id, :status, :is_assigned, :max_students, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns users matching the filter plus the unpaginated total.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.IsAssigned != nil {
		args = append(args, *filter.IsAssigned)
		conditions = append(conditions, fmt.Sprintf("is_assigned = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY full_name ASC LIMIT %d OFFSET %d",
		userColumns, where, pageSize, (page-1)*pageSize)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// SetAssigned flips the assignment mirror flag on a student.
func (r *UserRepository) SetAssigned(ctx context.Context, id string, assigned bool) error {
	const query = `UPDATE users SET is_assigned = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, assigned, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user assigned: %w", err)
	}
	return nil
}

// UpdateMaxStudents changes a supervisor's capacity.
func (r *UserRepository) UpdateMaxStudents(ctx context.Context, id string, max int) error {
	const query = `UPDATE users SET max_students = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, max, time.Now().UTC()); err != nil {
		return fmt.Errorf("update max students: %w", err)
	}
	return nil
}

// PurgeCascade removes a user and every record tied to them in a single
// transaction: notifications (either direction), project files, projects,
// assignments (either role), and finally the user row. Remote blob cleanup
// happens before this call; a crash mid-purge leaves the database untouched.
func (r *UserRepository) PurgeCascade(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge: %w", err)
	}

	statements := []string{
		`DELETE FROM notifications WHERE send_to = $1 OR initiated_by = $1`,
		`DELETE FROM project_files WHERE project_id IN (SELECT id FROM projects WHERE student_id = $1)`,
		`DELETE FROM projects WHERE student_id = $1`,
		`DELETE FROM assignments WHERE student_id = $1 OR supervisor_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("purge user %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purge: %w", err)
	}
	return nil
}
