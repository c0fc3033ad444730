package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
)

type projectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindApprovedByStudent(ctx context.Context, studentID string) (*models.Project, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Project, error)
	CreateBatch(ctx context.Context, projects []*models.Project) error
	ApproveWithCascade(ctx context.Context, topicID, studentID, review, reviewer string) error
	UpdateProposalStatus(ctx context.Context, topicID string, status models.ProposalStatus, review, reviewer string) error
	UpdateStage(ctx context.Context, projectID string, stage models.ProjectStage, completedAt *time.Time) error
	UpdateNarrative(ctx context.Context, projectID, abstract, introduction string) error
	Delete(ctx context.Context, id string) error
}

type supervisionChecker interface {
	ExistsActive(ctx context.Context, supervisorID, studentID string) (bool, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error)
}

type finalFileMarker interface {
	MarkLatestFinal(ctx context.Context, projectID string) (bool, error)
}

// TopicInput is one candidate topic in a submission batch.
type TopicInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category"`
}

// SubmitTopicsRequest carries a student's topic batch.
type SubmitTopicsRequest struct {
	Topics []TopicInput `json:"topics" validate:"required,min=1,max=3,dive"`
}

// ReviewTopicRequest is the supervisor's verdict on a topic.
type ReviewTopicRequest struct {
	TopicID string                `json:"topic_id" validate:"required"`
	Status  models.ProposalStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Review  string                `json:"review"`
}

// UpdateNarrativeRequest finalizes the archival text of a project.
type UpdateNarrativeRequest struct {
	Abstract     string `json:"abstract" validate:"required"`
	Introduction string `json:"introduction" validate:"required"`
}

// ProjectService owns the proposal approval and stage progression state
// machines.
type ProjectService struct {
	projects    projectRepository
	users       userRepository
	supervision supervisionChecker
	files       finalFileMarker
	notify      notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProjectService creates a service instance.
func NewProjectService(projects projectRepository, users userRepository, supervision supervisionChecker, files finalFileMarker, notify notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		projects:    projects,
		users:       users,
		supervision: supervision,
		files:       files,
		notify:      notify,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitTopics creates one pending project per topic (up to three per call)
// and notifies the student's assigned supervisor with a single batched
// message.
func (s *ProjectService) SubmitTopics(ctx context.Context, studentID string, req SubmitTopicsRequest) ([]models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	projects := make([]*models.Project, 0, len(req.Topics))
	for _, topic := range req.Topics {
		projects = append(projects, &models.Project{
			StudentID:      student.ID,
			Title:          topic.Title,
			Description:    topic.Description,
			Category:       topic.Category,
			ProposalStatus: models.ProposalPending,
			ProjectStatus:  models.StageProposal,
		})
	}
	if err := s.projects.CreateBatch(ctx, projects); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topics")
	}

	if s.notify != nil {
		if assignment, err := s.supervision.FindActiveByStudent(ctx, student.ID); err == nil && assignment != nil {
			s.notify.Notify(ctx, models.Notification{
				Message:     fmt.Sprintf("%s submitted %d new topic(s) for review", student.FullName, len(projects)),
				SendTo:      assignment.SupervisorID,
				InitiatedBy: &student.ID,
				Category:    models.NotifyTopicSubmission,
			})
		}
	}

	result := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		result = append(result, *p)
	}
	return result, nil
}

// ListTopics returns every topic the student has submitted.
func (s *ProjectService) ListTopics(ctx context.Context, studentID string) ([]models.Project, error) {
	topics, err := s.projects.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	return topics, nil
}

// DeleteTopic removes a topic owned by the student. Approved topics are
// immutable to the student and cannot be deleted.
func (s *ProjectService) DeleteTopic(ctx context.Context, studentID, topicID string) error {
	topic, err := s.projects.FindByID(ctx, topicID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if topic.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}
	if topic.ProposalStatus != models.ProposalPending && topic.ProposalStatus != models.ProposalRejected {
		return appErrors.Clone(appErrors.ErrInvalidState, "only pending or rejected topics can be deleted")
	}
	if err := s.projects.Delete(ctx, topicID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete topic")
	}
	return nil
}

// ReviewTopic records the supervisor's verdict. Approving a topic rejects
// any other currently approved topic of the same student inside one
// transaction so the one-approved-topic invariant holds at every instant;
// pending siblings are left for their own review.
func (s *ProjectService) ReviewTopic(ctx context.Context, supervisorID string, req ReviewTopicRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	topic, err := s.projects.FindByID(ctx, req.TopicID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}

	if err := s.ensureSupervises(ctx, supervisorID, topic.StudentID); err != nil {
		return nil, err
	}

	review := strings.TrimSpace(req.Review)
	reviewer := ""
	if review != "" {
		supervisor, err := s.users.FindByID(ctx, supervisorID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
		}
		reviewer = supervisor.FullName
	}

	switch req.Status {
	case models.ProposalApproved:
		if err := s.projects.ApproveWithCascade(ctx, topic.ID, topic.StudentID, review, reviewer); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve topic")
		}
	default:
		if err := s.projects.UpdateProposalStatus(ctx, topic.ID, models.ProposalRejected, review, reviewer); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject topic")
		}
	}
	s.metrics.RecordReview(strings.ToLower(string(req.Status)))

	if s.notify != nil {
		s.notify.Notify(ctx, models.Notification{
			Message:     fmt.Sprintf("Your topic %q has been %s", topic.Title, strings.ToLower(string(req.Status))),
			SendTo:      topic.StudentID,
			InitiatedBy: &supervisorID,
			Category:    models.NotifyProjectReview,
		})
	}

	updated, err := s.projects.FindByID(ctx, topic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload topic")
	}
	return updated, nil
}

// AdvanceStage moves an approved project strictly forward through the
// stage progression. Jumping ahead is allowed; moving backward or staying
// put is not. Reaching the terminal stage stamps the completion time and
// flags the latest submission file as final for later archival.
func (s *ProjectService) AdvanceStage(ctx context.Context, supervisorID, projectID string, newStage models.ProjectStage) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ProposalStatus != models.ProposalApproved {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}

	if err := s.ensureSupervises(ctx, supervisorID, project.StudentID); err != nil {
		return nil, err
	}

	if !models.CanAdvance(project.ProjectStatus, newStage) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move to a previous or same stage")
	}

	var completedAt *time.Time
	if newStage == models.StageCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	if err := s.projects.UpdateStage(ctx, project.ID, newStage, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stage")
	}

	if newStage == models.StageCompleted && s.files != nil {
		flagged, err := s.files.MarkLatestFinal(ctx, project.ID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to flag final file", "project_id", project.ID, "error", err)
		} else if !flagged {
			s.logger.Sugar().Warnw("completed project has no submission files", "project_id", project.ID)
		}
	}

	if s.notify != nil {
		s.notify.Notify(ctx, models.Notification{
			Message:     fmt.Sprintf("Your project %q moved to stage %s", project.Title, newStage),
			SendTo:      project.StudentID,
			InitiatedBy: &supervisorID,
			Category:    models.NotifyStatusUpdate,
		})
	}

	project.ProjectStatus = newStage
	project.CompletedAt = completedAt
	return project, nil
}

// UpdateNarrative stores the abstract and introduction. Only allowed while
// the approved project sits at the chapter 4-5 stage, the last point before
// completion and archival.
func (s *ProjectService) UpdateNarrative(ctx context.Context, studentID string, req UpdateNarrativeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid narrative payload")
	}

	project, err := s.projects.FindApprovedByStudent(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "approved project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ProjectStatus != models.StageChapter4_5 {
		return appErrors.Clone(appErrors.ErrInvalidState, "abstract and introduction can only be updated at the CHAPTER4_5 stage")
	}

	if err := s.projects.UpdateNarrative(ctx, project.ID, req.Abstract, req.Introduction); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update narrative")
	}
	return nil
}

func (s *ProjectService) ensureSupervises(ctx context.Context, supervisorID, studentID string) error {
	supervises, err := s.supervision.ExistsActive(ctx, supervisorID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check supervision")
	}
	if !supervises {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not assigned to this student")
	}
	return nil
}
