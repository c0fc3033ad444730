package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-track-api/internal/dto"
	"github.com/noah-isme/fyp-track-api/internal/models"
)

// AssignmentRepository persists supervisor-student assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CountActiveBySupervisor returns the supervisor's current active load.
func (r *AssignmentRepository) CountActiveBySupervisor(ctx context.Context, supervisorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE supervisor_id = $1 AND is_active = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, supervisorID); err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return count, nil
}

// FindActiveByStudent returns the student's single active assignment, or
// sql.ErrNoRows when the student is unassigned.
func (r *AssignmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error) {
	const query = `SELECT id, supervisor_id, student_id, is_active, assigned_at, updated_at
	FROM assignments WHERE student_id = $1 AND is_active = true`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ExistsActive checks whether the supervisor currently supervises the student.
func (r *AssignmentRepository) ExistsActive(ctx context.Context, supervisorID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE supervisor_id = $1 AND student_id = $2 AND is_active = true LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, supervisorID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// Deactivate marks an assignment inactive, keeping the row for audit.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET is_active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	return nil
}

// CreateBatch inserts the provided assignments in one round trip.
func (r *AssignmentRepository) CreateBatch(ctx context.Context, assignments []*models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, a := range assignments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.AssignedAt.IsZero() {
			a.AssignedAt = now
		}
		a.UpdatedAt = now
	}
	const query = `INSERT INTO assignments (id, supervisor_id, student_id, is_active, assigned_at, updated_at)
	VALUES (:id, :supervisor_id, :student_id, :is_active, :assigned_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignments); err != nil {
		return fmt.Errorf("create assignments: %w", err)
	}
	return nil
}

// ActiveSupervisorName resolves the full name of a student's current
// supervisor, or "" when the student has no active assignment.
func (r *AssignmentRepository) ActiveSupervisorName(ctx context.Context, studentID string) (string, error) {
	const query = `SELECT u.full_name FROM assignments a
	JOIN users u ON u.id = a.supervisor_id
	WHERE a.student_id = $1 AND a.is_active = true`
	var name string
	if err := r.db.GetContext(ctx, &name, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("resolve supervisor name: %w", err)
	}
	return name, nil
}

// ListAssignedStudents is the supervision roll-up: every actively assigned
// student of the supervisor together with their topics aggregated as JSON.
func (r *AssignmentRepository) ListAssignedStudents(ctx context.Context, supervisorID string) ([]dto.AssignedStudentRow, error) {
	const query = `
SELECT a.id AS assignment_id,
       s.id AS student_id,
       s.full_name,
       s.institution_id,
       s.email,
       s.phone,
       a.assigned_at,
       COALESCE(
         json_agg(
           json_build_object(
             'project_id', p.id,
             'title', p.title,
             'proposal_status', p.proposal_status,
             'project_status', p.project_status
           )
         ) FILTER (WHERE p.id IS NOT NULL), '[]'
       ) AS projects
FROM assignments a
JOIN users s ON s.id = a.student_id
LEFT JOIN projects p ON p.student_id = s.id
WHERE a.supervisor_id = $1
  AND a.is_active = true
GROUP BY a.id, s.id, s.full_name, s.institution_id, s.email, s.phone, a.assigned_at
ORDER BY a.assigned_at ASC`
	var rows []dto.AssignedStudentRow
	if err := r.db.SelectContext(ctx, &rows, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list assigned students: %w", err)
	}
	return rows, nil
}
