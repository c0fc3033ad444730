package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

func TestNextVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0) FROM project_files WHERE project_id = $1 AND type = $2`)).
		WithArgs("p1", string(models.FileSubmission)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))

	version, err := repo.NextVersion(context.Background(), "p1", models.FileSubmission)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectFileCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectExec("INSERT INTO project_files").WillReturnResult(sqlmock.NewResult(1, 1))

	file := &models.ProjectFile{ProjectID: "p1", Version: 1, FilePath: "345_PROPOSAL_submission_v1.pdf", Type: models.FileSubmission, ProjectStage: models.StageProposal}
	require.NoError(t, repo.Create(context.Background(), file))
	assert.NotEmpty(t, file.ID)
	assert.False(t, file.UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectFileListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "project_id", "version", "file_path", "file_size", "type", "is_final", "project_stage", "uploaded_at"}).
		AddRow("f1", "p1", 1, "path.pdf", 42, string(models.FileCorrection), false, string(models.StageChapter1_3), now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM project_files WHERE project_id = $1 AND project_stage = $2 AND type = $3 ORDER BY uploaded_at ASC`)).
		WithArgs("p1", string(models.StageChapter1_3), string(models.FileCorrection)).
		WillReturnRows(rows)

	stage := models.StageChapter1_3
	fileType := models.FileCorrection
	files, err := repo.List(context.Background(), "p1", models.ProjectFileFilter{Stage: &stage, Type: &fileType})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLatestFinal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectExec("UPDATE project_files SET is_final = true").
		WithArgs("p1", string(models.FileSubmission)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flagged, err := repo.MarkLatestFinal(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLatestFinalNoFiles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectExec("UPDATE project_files SET is_final = true").
		WithArgs("p1", string(models.FileSubmission)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	flagged, err := repo.MarkLatestFinal(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, flagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectFileDeleteNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectExec("DELETE FROM project_files").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFinalNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectFileRepository(db)

	mock.ExpectQuery("FROM project_files").
		WithArgs("p1", string(models.FileSubmission)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindFinal(context.Background(), "p1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
