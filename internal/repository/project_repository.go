package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

const projectColumns = `id, student_id, title, description, category, review, reviewer, proposal_status, project_status, abstract, introduction, submitted_at, updated_at, completed_at`

// ProjectRepository persists topics and their lifecycle state.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID fetches a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindApprovedByStudent returns the student's approved project. By the
// cascade invariant there is at most one.
func (r *ProjectRepository) FindApprovedByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE student_id = $1 AND proposal_status = $2`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, studentID, models.ProposalApproved); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListByStudent returns every topic the student has submitted.
func (r *ProjectRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE student_id = $1 ORDER BY submitted_at ASC`, projectColumns)
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, studentID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// CreateBatch inserts the submitted topics in one round trip.
func (r *ProjectRepository) CreateBatch(ctx context.Context, projects []*models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, p := range projects {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.ProposalStatus == "" {
			p.ProposalStatus = models.ProposalPending
		}
		if p.ProjectStatus == "" {
			p.ProjectStatus = models.StageProposal
		}
		if p.SubmittedAt.IsZero() {
			p.SubmittedAt = now
		}
		p.UpdatedAt = now
	}
	const query = `INSERT INTO projects
	(id, student_id, title, description, category, review, reviewer, proposal_status, project_status, abstract, introduction, submitted_at, updated_at, completed_at)
	VALUES (:id, :student_id, :title, :description, :category, :review, :reviewer, :proposal_status, :project_status, :abstract, :introduction, :submitted_at, :updated_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, projects); err != nil {
		return fmt.Errorf("create projects: %w", err)
	}
	return nil
}

// ApproveWithCascade approves the target topic and, inside the same
// transaction, rejects any other currently approved topic of the same
// student. Pending siblings keep waiting for their own verdict. Ordering
// matters: the bulk reject runs first so there is never a window with two
// approved topics.
func (r *ProjectRepository) ApproveWithCascade(ctx context.Context, topicID, studentID, review, reviewer string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval: %w", err)
	}
	now := time.Now().UTC()

	const rejectOthers = `UPDATE projects SET proposal_status = $1, updated_at = $2
	WHERE student_id = $3 AND id != $4 AND proposal_status = $5`
	if _, err := tx.ExecContext(ctx, rejectOthers, models.ProposalRejected, now, studentID, topicID, models.ProposalApproved); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("reject superseded topics: %w", err)
	}

	const approve = `UPDATE projects SET proposal_status = $1, review = $2, reviewer = $3, updated_at = $4 WHERE id = $5`
	if _, err := tx.ExecContext(ctx, approve, models.ProposalApproved, review, reviewer, now, topicID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("approve topic: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval: %w", err)
	}
	return nil
}

// UpdateProposalStatus sets the review outcome on a single topic.
func (r *ProjectRepository) UpdateProposalStatus(ctx context.Context, topicID string, status models.ProposalStatus, review, reviewer string) error {
	const query = `UPDATE projects SET proposal_status = $2, review = $3, reviewer = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, topicID, status, review, reviewer, time.Now().UTC()); err != nil {
		return fmt.Errorf("update proposal status: %w", err)
	}
	return nil
}

// UpdateStage moves a project to a new stage, stamping completed_at when
// the terminal stage is reached.
func (r *ProjectRepository) UpdateStage(ctx context.Context, projectID string, stage models.ProjectStage, completedAt *time.Time) error {
	const query = `UPDATE projects SET project_status = $2, completed_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, stage, completedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update project stage: %w", err)
	}
	return nil
}

// UpdateNarrative stores the abstract and introduction text.
func (r *ProjectRepository) UpdateNarrative(ctx context.Context, projectID, abstract, introduction string) error {
	const query = `UPDATE projects SET abstract = $2, introduction = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, projectID, abstract, introduction, time.Now().UTC()); err != nil {
		return fmt.Errorf("update project narrative: %w", err)
	}
	return nil
}

// Delete removes a topic row.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted project rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete project: no rows affected")
	}
	return nil
}

// ListCompletedBefore returns completed projects whose completion timestamp
// predates the cutoff. The retention sweep feeds on this.
func (r *ProjectRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE project_status = $1 AND completed_at < $2 ORDER BY completed_at ASC`, projectColumns)
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, models.StageCompleted, cutoff); err != nil {
		return nil, fmt.Errorf("list completed projects: %w", err)
	}
	return projects, nil
}
