package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

func TestCountActiveBySupervisor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("sup1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountActiveBySupervisor(context.Background(), "sup1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM assignments").
		WithArgs("sup1", "stu1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "sup1", "stu1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM assignments").
		WithArgs("sup1", "stu2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsActive(context.Background(), "sup1", "stu2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCreateBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(0, 2))

	assignments := []*models.Assignment{
		{SupervisorID: "sup1", StudentID: "stu1", IsActive: true},
		{SupervisorID: "sup1", StudentID: "stu2", IsActive: true},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), assignments))
	for _, a := range assignments {
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.AssignedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSupervisorNameUnassigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT u.full_name FROM assignments").
		WithArgs("stu1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name"}))

	name, err := repo.ActiveSupervisorName(context.Background(), "stu1")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAssignedStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	projects := `[{"project_id":"p1","title":"Topic","proposal_status":"APPROVED","project_status":"CHAPTER1_3"}]`
	rows := sqlmock.NewRows([]string{"assignment_id", "student_id", "full_name", "institution_id", "email", "phone", "assigned_at", "projects"}).
		AddRow("a1", "stu1", "Student One", "2021001", "s1@example.com", "", now, []byte(projects))
	mock.ExpectQuery("FROM assignments a").
		WithArgs("sup1").
		WillReturnRows(rows)

	students, err := repo.ListAssignedStudents(context.Background(), "sup1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "stu1", students[0].StudentID)
	assert.JSONEq(t, projects, string(students[0].Projects))
	assert.NoError(t, mock.ExpectationsWereMet())
}
