package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
	"github.com/noah-isme/fyp-track-api/pkg/storage"
)

type fileRepository interface {
	NextVersion(ctx context.Context, projectID string, fileType models.FileType) (int, error)
	Create(ctx context.Context, file *models.ProjectFile) error
	FindByID(ctx context.Context, id string) (*models.ProjectFile, error)
	List(ctx context.Context, projectID string, filter models.ProjectFileFilter) ([]models.ProjectFile, error)
	Delete(ctx context.Context, id string) error
}

type blobStore interface {
	Store(localPath, namespace string) (storage.StoredObject, error)
	Delete(locations []string) error
}

type projectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

// UploadFileRequest stages one upload. TempPath points at the already
// received bytes on local disk; the service owns cleaning that file up.
type UploadFileRequest struct {
	ProjectID    string          `json:"project_id" validate:"required"`
	Type         models.FileType `json:"type" validate:"required,oneof=SUBMISSION CORRECTION"`
	TempPath     string          `json:"-" validate:"required"`
	OriginalName string          `json:"original_name" validate:"required"`
}

// FileService is the versioned upload ledger. Every accepted upload gets
// the next version in its (project, type) sequence; versions are never
// reused, even after deletes.
type FileService struct {
	files     fileRepository
	projects  projectReader
	users     userRepository
	checker   supervisionChecker
	blobs     blobStore
	notify    notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFileService creates a service instance.
func NewFileService(files fileRepository, projects projectReader, users userRepository, checker supervisionChecker, blobs blobStore, notify notifier, validate *validator.Validate, logger *zap.Logger) *FileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		files:     files,
		projects:  projects,
		users:     users,
		checker:   checker,
		blobs:     blobs,
		notify:    notify,
		validator: validate,
		logger:    logger,
	}
}

// Upload stores the staged file in the blob store and records its metadata.
// Students upload submissions on their own approved project; the assigned
// supervisor uploads corrections. When the blob write fails, no metadata is
// written and the version number is not consumed. The staged temp file is
// removed on every path.
func (s *FileService) Upload(ctx context.Context, uploaderID string, req UploadFileRequest) (*models.ProjectFile, error) {
	defer func() {
		if err := os.Remove(req.TempPath); err != nil && !os.IsNotExist(err) {
			s.logger.Sugar().Warnw("failed to remove staged upload", "path", req.TempPath, "error", err)
		}
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ProposalStatus != models.ProposalApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "files can only be uploaded to an approved project")
	}

	switch req.Type {
	case models.FileSubmission:
		if project.StudentID != uploaderID {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the project owner can upload submissions")
		}
	case models.FileCorrection:
		supervises, err := s.checker.ExistsActive(ctx, uploaderID, project.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check supervision")
		}
		if !supervises {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the assigned supervisor can upload corrections")
		}
	}

	owner, err := s.users.FindByID(ctx, project.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project owner")
	}

	version, err := s.files.NextVersion(ctx, project.ID, req.Type)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate file version")
	}

	filename := buildFileName(owner.InstitutionID, project.ProjectStatus, req.Type, version, req.OriginalName)
	staged := filepath.Join(filepath.Dir(req.TempPath), filename)
	if err := os.Rename(req.TempPath, staged); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "failed to stage upload")
	}
	req.TempPath = staged

	object, err := s.blobs.Store(staged, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "failed to store file")
	}

	file := &models.ProjectFile{
		ProjectID:    project.ID,
		Version:      version,
		FilePath:     object.Location,
		FileSize:     object.Size,
		Type:         req.Type,
		ProjectStage: project.ProjectStatus,
	}
	if err := s.files.Create(ctx, file); err != nil {
		if cleanupErr := s.blobs.Delete([]string{object.Location}); cleanupErr != nil {
			s.logger.Sugar().Warnw("failed to remove orphaned blob", "location", object.Location, "error", cleanupErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record file")
	}

	if s.notify != nil {
		s.notifyCounterpart(ctx, uploaderID, project, file)
	}
	return file, nil
}

// List returns a project's files, narrowed by the optional stage and type
// filters. Both the owner and the assigned supervisor may list.
func (s *FileService) List(ctx context.Context, callerID, projectID string, filter models.ProjectFileFilter) ([]models.ProjectFile, error) {
	if filter.Stage != nil && !models.ValidStage(*filter.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stage filter")
	}
	if filter.Type != nil && !models.ValidFileType(*filter.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown file type filter")
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.StudentID != callerID {
		supervises, err := s.checker.ExistsActive(ctx, callerID, project.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check supervision")
		}
		if !supervises {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not a participant of this project")
		}
	}

	files, err := s.files.List(ctx, projectID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return files, nil
}

// Delete removes one of the caller's own uploads along with its blob. The
// blob removal is best effort; metadata deletion is what matters, and a
// stray blob is reclaimed by the retention sweep eventually. Final-flagged
// files are immutable.
func (s *FileService) Delete(ctx context.Context, callerID, fileID string) error {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.IsFinal {
		return appErrors.Clone(appErrors.ErrInvalidState, "final files cannot be deleted")
	}

	project, err := s.projects.FindByID(ctx, file.ProjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	switch file.Type {
	case models.FileSubmission:
		if project.StudentID != callerID {
			return appErrors.Clone(appErrors.ErrUnauthorized, "only the project owner can delete submissions")
		}
	case models.FileCorrection:
		supervises, err := s.checker.ExistsActive(ctx, callerID, project.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check supervision")
		}
		if !supervises {
			return appErrors.Clone(appErrors.ErrUnauthorized, "only the assigned supervisor can delete corrections")
		}
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	if err := s.blobs.Delete([]string{file.FilePath}); err != nil {
		s.logger.Sugar().Warnw("failed to remove blob for deleted file", "location", file.FilePath, "error", err)
	}
	return nil
}

func (s *FileService) notifyCounterpart(ctx context.Context, uploaderID string, project *models.Project, file *models.ProjectFile) {
	if file.Type == models.FileCorrection {
		s.notify.Notify(ctx, models.Notification{
			Message:     fmt.Sprintf("A correction (v%d) was uploaded for your project %q", file.Version, project.Title),
			SendTo:      project.StudentID,
			InitiatedBy: &uploaderID,
			Category:    models.NotifyFileUpload,
		})
		return
	}
	assignment, err := s.checker.FindActiveByStudent(ctx, project.StudentID)
	if err != nil || assignment == nil {
		return
	}
	s.notify.Notify(ctx, models.Notification{
		Message:     fmt.Sprintf("A new submission (v%d) was uploaded for project %q", file.Version, project.Title),
		SendTo:      assignment.SupervisorID,
		InitiatedBy: &uploaderID,
		Category:    models.NotifyFileUpload,
	})
}

// buildFileName derives the canonical stored name: the last three digits of
// the owner's institution ID, the project stage, the file kind, and the
// version, keeping the original extension.
func buildFileName(institutionID string, stage models.ProjectStage, fileType models.FileType, version int, originalName string) string {
	suffix := institutionID
	if len(suffix) > 3 {
		suffix = suffix[len(suffix)-3:]
	}
	ext := filepath.Ext(originalName)
	return fmt.Sprintf("%s_%s_%s_v%d%s", suffix, stage, strings.ToLower(string(fileType)), version, ext)
}
