package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

const projectFileColumns = `id, project_id, version, file_path, file_size, type, is_final, project_stage, uploaded_at`

// ProjectFileRepository persists upload metadata.
type ProjectFileRepository struct {
	db *sqlx.DB
}

// NewProjectFileRepository constructs the repository.
func NewProjectFileRepository(db *sqlx.DB) *ProjectFileRepository {
	return &ProjectFileRepository{db: db}
}

// NextVersion computes max(version)+1 for the (project, type) sequence.
// Submission and correction sequences are independent.
func (r *ProjectFileRepository) NextVersion(ctx context.Context, projectID string, fileType models.FileType) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM project_files WHERE project_id = $1 AND type = $2`
	var current int
	if err := r.db.GetContext(ctx, &current, query, projectID, fileType); err != nil {
		return 0, fmt.Errorf("next file version: %w", err)
	}
	return current + 1, nil
}

// Create inserts upload metadata.
func (r *ProjectFileRepository) Create(ctx context.Context, file *models.ProjectFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO project_files (id, project_id, version, file_path, file_size, type, is_final, project_stage, uploaded_at)
	VALUES (:id, :project_id, :version, :file_path, :file_size, :type, :is_final, :project_stage, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create project file: %w", err)
	}
	return nil
}

// FindByID fetches file metadata by identifier.
func (r *ProjectFileRepository) FindByID(ctx context.Context, id string) (*models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files WHERE id = $1`, projectFileColumns)
	var file models.ProjectFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns files for a project, optionally narrowed by stage and type.
func (r *ProjectFileRepository) List(ctx context.Context, projectID string, filter models.ProjectFileFilter) ([]models.ProjectFile, error) {
	conditions := []string{"project_id = $1"}
	args := []interface{}{projectID}
	if filter.Stage != nil {
		args = append(args, *filter.Stage)
		conditions = append(conditions, fmt.Sprintf("project_stage = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM project_files WHERE %s ORDER BY uploaded_at ASC`,
		projectFileColumns, strings.Join(conditions, " AND "))
	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	return files, nil
}

// Delete removes file metadata.
func (r *ProjectFileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM project_files WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted file rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindFinal returns the final-flagged submission file for a project, or
// sql.ErrNoRows when none has been flagged.
func (r *ProjectFileRepository) FindFinal(ctx context.Context, projectID string) (*models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files
	WHERE project_id = $1 AND type = $2 AND is_final = true
	ORDER BY version DESC LIMIT 1`, projectFileColumns)
	var file models.ProjectFile
	if err := r.db.GetContext(ctx, &file, query, projectID, models.FileSubmission); err != nil {
		return nil, err
	}
	return &file, nil
}

// FindLatest returns the most recently uploaded file for a project
// regardless of type, or sql.ErrNoRows when the project has no files.
func (r *ProjectFileRepository) FindLatest(ctx context.Context, projectID string) (*models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files WHERE project_id = $1 ORDER BY uploaded_at DESC LIMIT 1`, projectFileColumns)
	var file models.ProjectFile
	if err := r.db.GetContext(ctx, &file, query, projectID); err != nil {
		return nil, err
	}
	return &file, nil
}

// MarkLatestFinal flags the highest-version submission file as final.
// Returns false when the project has no submission files yet.
func (r *ProjectFileRepository) MarkLatestFinal(ctx context.Context, projectID string) (bool, error) {
	const query = `UPDATE project_files SET is_final = true
	WHERE id = (
		SELECT id FROM project_files
		WHERE project_id = $1 AND type = $2
		ORDER BY version DESC LIMIT 1
	)`
	result, err := r.db.ExecContext(ctx, query, projectID, models.FileSubmission)
	if err != nil {
		return false, fmt.Errorf("mark final file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check final file rows: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns every file under the student's projects. The purge
// path uses this to clean remote blobs before deleting metadata.
func (r *ProjectFileRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files
	WHERE project_id IN (SELECT id FROM projects WHERE student_id = $1)`, projectFileColumns)
	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, studentID); err != nil {
		return nil, fmt.Errorf("list files by student: %w", err)
	}
	return files, nil
}
