package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/dto"
	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
)

type assignmentRepository interface {
	CountActiveBySupervisor(ctx context.Context, supervisorID string) (int, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error)
	Deactivate(ctx context.Context, id string) error
	CreateBatch(ctx context.Context, assignments []*models.Assignment) error
	ListAssignedStudents(ctx context.Context, supervisorID string) ([]dto.AssignedStudentRow, error)
}

// AssignStudentsRequest names the supervisor and the students to allocate.
type AssignStudentsRequest struct {
	SupervisorID          string   `json:"supervisor_id" validate:"required"`
	StudentInstitutionIDs []string `json:"student_institution_ids" validate:"required,min=1,dive,required"`
}

// AllocationService maintains the active student-supervisor relation.
//
// The capacity check below is check-then-act: two concurrent calls for the
// same supervisor can both pass before either commits. The system accepts
// this transient over-allocation rather than serializing all assignment
// writes; the next call observes the true count.
type AllocationService struct {
	users       userRepository
	assignments assignmentRepository
	notify      notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAllocationService creates a service instance.
func NewAllocationService(users userRepository, assignments assignmentRepository, notify notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		users:       users,
		assignments: assignments,
		notify:      notify,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// AssignStudents allocates the listed students to the supervisor and
// returns the institution IDs actually assigned. Unknown students are
// skipped, students already under this supervisor are skipped, and
// students under another supervisor are migrated by deactivating the old
// assignment first. Nothing is written when the batch would push the
// supervisor past their limit.
func (s *AllocationService) AssignStudents(ctx context.Context, req AssignStudentsRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	supervisor, err := s.loadSupervisor(ctx, req.SupervisorID)
	if err != nil {
		return nil, err
	}

	activeCount, err := s.assignments.CountActiveBySupervisor(ctx, supervisor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active assignments")
	}
	if activeCount+len(req.StudentInstitutionIDs) > supervisor.MaxStudents {
		remaining := supervisor.MaxStudents - activeCount
		if remaining < 0 {
			remaining = 0
		}
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("supervisor can only take %d more students (limit: %d)", remaining, supervisor.MaxStudents))
	}

	toCreate := make([]*models.Assignment, 0, len(req.StudentInstitutionIDs))
	assigned := make([]string, 0, len(req.StudentInstitutionIDs))
	migrated := make([]*models.User, 0, len(req.StudentInstitutionIDs))

	for _, institutionID := range req.StudentInstitutionIDs {
		student, err := s.users.FindByInstitutionID(ctx, institutionID)
		if err != nil {
			if err == sql.ErrNoRows {
				s.logger.Sugar().Debugw("skipping unknown student", "institution_id", institutionID)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		if student.IsAssigned {
			existing, err := s.assignments.FindActiveByStudent(ctx, student.ID)
			if err != nil && err != sql.ErrNoRows {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignment")
			}
			if existing != nil {
				if existing.SupervisorID == supervisor.ID {
					continue
				}
				if err := s.assignments.Deactivate(ctx, existing.ID); err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate previous assignment")
				}
			}
		}

		toCreate = append(toCreate, &models.Assignment{
			SupervisorID: supervisor.ID,
			StudentID:    student.ID,
			IsActive:     true,
		})
		assigned = append(assigned, student.InstitutionID)
		migrated = append(migrated, student)
	}

	if len(toCreate) > 0 {
		if err := s.assignments.CreateBatch(ctx, toCreate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignments")
		}
		for _, student := range migrated {
			if err := s.users.SetAssigned(ctx, student.ID, true); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag student assigned")
			}
			if s.notify != nil {
				s.notify.Notify(ctx, models.Notification{
					Message:     fmt.Sprintf("You have been assigned to supervisor %s", supervisor.FullName),
					SendTo:      student.ID,
					InitiatedBy: &supervisor.ID,
					Category:    models.NotifyStudentAssignment,
				})
			}
		}
		s.metrics.RecordAssignments(len(toCreate))
	}

	s.logger.Sugar().Infow("students assigned", "supervisor_id", supervisor.ID, "requested", len(req.StudentInstitutionIDs), "assigned", len(assigned))
	return assigned, nil
}

// SetStudentLimit changes a supervisor's capacity. Lowering the limit below
// the current active count does not evict anyone; the cap is only enforced
// on future assignment calls.
func (s *AllocationService) SetStudentLimit(ctx context.Context, supervisorID string, maxStudents int) error {
	if maxStudents < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "student limit cannot be negative")
	}
	supervisor, err := s.loadSupervisor(ctx, supervisorID)
	if err != nil {
		return err
	}
	if err := s.users.UpdateMaxStudents(ctx, supervisor.ID, maxStudents); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student limit")
	}
	return nil
}

// ListAssignedStudents shapes the supervision roll-up for the supervisor:
// approved topic and stage per student, plus rejected topic titles.
func (s *AllocationService) ListAssignedStudents(ctx context.Context, supervisorID string) ([]dto.AssignedStudent, error) {
	if _, err := s.loadSupervisor(ctx, supervisorID); err != nil {
		return nil, err
	}
	rows, err := s.assignments.ListAssignedStudents(ctx, supervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned students")
	}

	students := make([]dto.AssignedStudent, 0, len(rows))
	for _, row := range rows {
		var summaries []dto.ProjectSummary
		if len(row.Projects) > 0 {
			if err := json.Unmarshal(row.Projects, &summaries); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode project roll-up")
			}
		}

		student := dto.AssignedStudent{
			AssignmentID:   row.AssignmentID,
			StudentID:      row.StudentID,
			FullName:       row.FullName,
			InstitutionID:  row.InstitutionID,
			Email:          row.Email,
			Phone:          row.Phone,
			RejectedTopics: make([]string, 0),
		}
		for _, summary := range summaries {
			switch summary.ProposalStatus {
			case models.ProposalApproved:
				student.ApprovedTopic = summary.Title
				stage := summary.ProjectStatus
				student.ProjectStatus = &stage
			case models.ProposalRejected:
				student.RejectedTopics = append(student.RejectedTopics, summary.Title)
			}
		}
		students = append(students, student)
	}
	return students, nil
}

func (s *AllocationService) loadSupervisor(ctx context.Context, supervisorID string) (*models.User, error) {
	supervisor, err := s.users.FindByID(ctx, supervisorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if supervisor.Role != models.RoleSupervisor {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
	}
	return supervisor, nil
}
