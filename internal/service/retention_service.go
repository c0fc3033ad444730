package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

type completedProjectLister interface {
	ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]models.Project, error)
}

type archiveWriter interface {
	Create(ctx context.Context, archive *models.Archive) error
}

type retentionFileReader interface {
	FindFinal(ctx context.Context, projectID string) (*models.ProjectFile, error)
	FindLatest(ctx context.Context, projectID string) (*models.ProjectFile, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ProjectFile, error)
}

type supervisorNameReader interface {
	ActiveSupervisorName(ctx context.Context, studentID string) (string, error)
}

type catalogInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RetentionService runs the periodic sweep that turns old completed
// projects into public archive entries and then purges the originating
// student accounts. A project is eligible once its completion timestamp is
// older than the retention window.
type RetentionService struct {
	projects    completedProjectLister
	files       retentionFileReader
	users       userRepository
	departments departmentReader
	supervision supervisorNameReader
	archives    archiveWriter
	blobs       blobStore
	cache       catalogInvalidator
	metrics     *MetricsService
	logger      *zap.Logger

	window   time.Duration
	interval time.Duration
}

// NewRetentionService creates a sweeper instance.
func NewRetentionService(
	projects completedProjectLister,
	files retentionFileReader,
	users userRepository,
	departments departmentReader,
	supervision supervisorNameReader,
	archives archiveWriter,
	blobs blobStore,
	cache catalogInvalidator,
	metrics *MetricsService,
	logger *zap.Logger,
	window, interval time.Duration,
) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionService{
		projects:    projects,
		files:       files,
		users:       users,
		departments: departments,
		supervision: supervision,
		archives:    archives,
		blobs:       blobs,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		window:      window,
		interval:    interval,
	}
}

// Start runs one sweep immediately and then on every tick until the
// context is cancelled.
func (s *RetentionService) Start(ctx context.Context) {
	go func() {
		s.Sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep archives every eligible completed project and purges the owning
// student accounts. Each item fails independently; a project whose final
// file cannot be resolved is skipped and retried on the next run. The
// sweep is idempotent because purged projects no longer show up as
// completed.
func (s *RetentionService) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.window)
	projects, err := s.projects.ListCompletedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Sugar().Errorw("retention sweep aborted", "error", err)
		s.metrics.RecordSweep(0, 0, 1)
		return
	}
	if len(projects) == 0 {
		return
	}

	var archived, purged, failures int
	toPurge := make(map[string]struct{}, len(projects))
	preserved := make(map[string]struct{}, len(projects))

	for _, project := range projects {
		location, err := s.archiveProject(ctx, project)
		if err != nil {
			s.logger.Sugar().Warnw("project left for next sweep", "project_id", project.ID, "error", err)
			failures++
			continue
		}
		archived++
		preserved[location] = struct{}{}
		toPurge[project.StudentID] = struct{}{}
	}

	for studentID := range toPurge {
		if err := s.purgeStudent(ctx, studentID, preserved); err != nil {
			s.logger.Sugar().Errorw("failed to purge student", "student_id", studentID, "error", err)
			failures++
			continue
		}
		purged++
	}

	if archived > 0 && s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate catalog cache", "error", err)
		}
	}

	s.metrics.RecordSweep(archived, purged, failures)
	s.logger.Sugar().Infow("retention sweep finished",
		"eligible", len(projects), "archived", archived, "purged", purged, "failures", failures)
}

// archiveProject snapshots one completed project into the catalog and
// returns the blob location the snapshot points at. The snapshot carries
// the final submission file; when no file was flagged final, the latest
// upload stands in.
func (s *RetentionService) archiveProject(ctx context.Context, project models.Project) (string, error) {
	file, err := s.files.FindFinal(ctx, project.ID)
	if err == sql.ErrNoRows {
		file, err = s.files.FindLatest(ctx, project.ID)
	}
	if err != nil {
		return "", err
	}

	owner, err := s.users.FindByID(ctx, project.StudentID)
	if err != nil {
		return "", err
	}

	department := ""
	if owner.DepartmentID != nil {
		if dept, err := s.departments.FindByID(ctx, *owner.DepartmentID); err == nil {
			department = dept.Name
		} else if err != sql.ErrNoRows {
			return "", err
		}
	}

	supervisedBy, err := s.supervision.ActiveSupervisorName(ctx, project.StudentID)
	if err != nil {
		return "", err
	}

	year := project.UpdatedAt.Year()
	if project.CompletedAt != nil {
		year = project.CompletedAt.Year()
	}

	archive := &models.Archive{
		Title:        project.Title,
		Author:       owner.FullName,
		Email:        owner.Email,
		Category:     project.Category,
		Department:   department,
		SupervisedBy: supervisedBy,
		Year:         year,
		Abstract:     project.Abstract,
		Introduction: project.Introduction,
		FilePath:     file.FilePath,
	}
	if err := s.archives.Create(ctx, archive); err != nil {
		return "", err
	}
	return file.FilePath, nil
}

// purgeStudent deletes the student's blobs and then every row referencing
// the account in one transaction. Blobs the catalog points at are kept.
func (s *RetentionService) purgeStudent(ctx context.Context, studentID string, preserved map[string]struct{}) error {
	files, err := s.files.ListByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	locations := make([]string, 0, len(files))
	for _, file := range files {
		if file.IsFinal {
			continue
		}
		if _, keep := preserved[file.FilePath]; keep {
			continue
		}
		locations = append(locations, file.FilePath)
	}
	if len(locations) > 0 && s.blobs != nil {
		if err := s.blobs.Delete(locations); err != nil {
			s.logger.Sugar().Warnw("failed to remove blobs for purged student", "student_id", studentID, "error", err)
		}
	}
	return s.users.PurgeCascade(ctx, studentID)
}
