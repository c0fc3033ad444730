package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
)

func stageUpload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("dummy content"), 0o644))
	return path
}

func newFileFixture(t *testing.T) (*FileService, *stubFileRepo, *stubProjectRepo, *stubBlobStore, *recordingNotifier) {
	t.Helper()
	users := newStubUserRepo(studentUser("stu1", "2021345"), supervisorUser("sup1", 5))
	assignments := newStubAssignmentRepo()
	assignments.active["stu1"] = &models.Assignment{ID: "a1", SupervisorID: "sup1", StudentID: "stu1", IsActive: true}
	projects := newStubProjectRepo(
		&models.Project{ID: "p1", StudentID: "stu1", Title: "Approved", ProposalStatus: models.ProposalApproved, ProjectStatus: models.StageChapter1_3},
	)
	files := newStubFileRepo()
	files.owners["p1"] = "stu1"
	blobs := &stubBlobStore{}
	notify := &recordingNotifier{}
	svc := NewFileService(files, projects, users, assignments, blobs, notify, validator.New(), zap.NewNop())
	return svc, files, projects, blobs, notify
}

func TestUploadSubmission(t *testing.T) {
	svc, files, _, blobs, notify := newFileFixture(t)
	temp := stageUpload(t, "thesis.pdf")

	file, err := svc.Upload(context.Background(), "stu1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileSubmission,
		TempPath:     temp,
		OriginalName: "thesis.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, file.Version)
	assert.Equal(t, "p1/345_CHAPTER1_3_submission_v1.pdf", file.FilePath)
	assert.Equal(t, models.StageChapter1_3, file.ProjectStage)
	assert.Equal(t, int64(42), file.FileSize)
	assert.Len(t, files.files, 1)
	assert.Equal(t, []string{"p1/345_CHAPTER1_3_submission_v1.pdf"}, blobs.stored)

	require.Len(t, notify.sent, 1)
	assert.Equal(t, "sup1", notify.sent[0].SendTo)
	assert.Equal(t, models.NotifyFileUpload, notify.sent[0].Category)

	_, statErr := os.Stat(temp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadVersionSequencesAreIndependent(t *testing.T) {
	svc, _, _, _, _ := newFileFixture(t)

	for i, want := range []int{1, 2} {
		file, err := svc.Upload(context.Background(), "stu1", UploadFileRequest{
			ProjectID:    "p1",
			Type:         models.FileSubmission,
			TempPath:     stageUpload(t, "sub.pdf"),
			OriginalName: "sub.pdf",
		})
		require.NoError(t, err, "submission %d", i)
		assert.Equal(t, want, file.Version)
	}

	correction, err := svc.Upload(context.Background(), "sup1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileCorrection,
		TempPath:     stageUpload(t, "notes.docx"),
		OriginalName: "notes.docx",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, correction.Version)
	assert.Equal(t, "p1/345_CHAPTER1_3_correction_v1.docx", correction.FilePath)
}

func TestUploadBlobFailureWritesNoMetadata(t *testing.T) {
	svc, files, _, blobs, _ := newFileFixture(t)
	blobs.failStore = true
	temp := stageUpload(t, "thesis.pdf")

	_, err := svc.Upload(context.Background(), "stu1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileSubmission,
		TempPath:     temp,
		OriginalName: "thesis.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUploadFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.files)
}

func TestUploadAuthz(t *testing.T) {
	svc, _, _, _, _ := newFileFixture(t)

	_, err := svc.Upload(context.Background(), "sup1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileSubmission,
		TempPath:     stageUpload(t, "thesis.pdf"),
		OriginalName: "thesis.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.Upload(context.Background(), "stu1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileCorrection,
		TempPath:     stageUpload(t, "notes.pdf"),
		OriginalName: "notes.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestUploadRequiresApprovedProject(t *testing.T) {
	svc, _, projects, _, _ := newFileFixture(t)
	projects.projects["p1"].ProposalStatus = models.ProposalPending

	_, err := svc.Upload(context.Background(), "stu1", UploadFileRequest{
		ProjectID:    "p1",
		Type:         models.FileSubmission,
		TempPath:     stageUpload(t, "thesis.pdf"),
		OriginalName: "thesis.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestListFilters(t *testing.T) {
	svc, files, _, _, _ := newFileFixture(t)
	ctx := context.Background()
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ProjectID: "p1", Version: 1, Type: models.FileSubmission, ProjectStage: models.StageChapter1_3}))
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ProjectID: "p1", Version: 1, Type: models.FileCorrection, ProjectStage: models.StageChapter1_3}))
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ProjectID: "p1", Version: 2, Type: models.FileSubmission, ProjectStage: models.StageChapter4_5}))

	corrections := models.FileCorrection
	listed, err := svc.List(ctx, "sup1", "p1", models.ProjectFileFilter{Type: &corrections})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	stage := models.StageChapter1_3
	listed, err = svc.List(ctx, "stu1", "p1", models.ProjectFileFilter{Stage: &stage})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = svc.List(ctx, "intruder", "p1", models.ProjectFileFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	bogusStage := models.ProjectStage("CHAPTER9")
	_, err = svc.List(ctx, "stu1", "p1", models.ProjectFileFilter{Stage: &bogusStage})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	bogusType := models.FileType("APPENDIX")
	_, err = svc.List(ctx, "stu1", "p1", models.ProjectFileFilter{Type: &bogusType})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteFile(t *testing.T) {
	svc, files, _, blobs, _ := newFileFixture(t)
	ctx := context.Background()
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ID: "f1", ProjectID: "p1", Version: 1, Type: models.FileSubmission, FilePath: "v1.pdf"}))
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ID: "f2", ProjectID: "p1", Version: 2, Type: models.FileSubmission, FilePath: "v2.pdf", IsFinal: true}))

	require.NoError(t, svc.Delete(ctx, "stu1", "f1"))
	assert.NotContains(t, files.files, "f1")
	assert.Equal(t, []string{"v1.pdf"}, blobs.deleted)

	err := svc.Delete(ctx, "stu1", "f2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	err = svc.Delete(ctx, "sup1", "f2")
	require.Error(t, err)
}

func TestDeleteCorrectionRequiresSupervisor(t *testing.T) {
	svc, files, _, _, _ := newFileFixture(t)
	ctx := context.Background()
	require.NoError(t, files.Create(ctx, &models.ProjectFile{ID: "c1", ProjectID: "p1", Version: 1, Type: models.FileCorrection, FilePath: "c1.pdf"}))

	err := svc.Delete(ctx, "stu1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, "sup1", "c1"))
}
