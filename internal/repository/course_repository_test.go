package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(sqlmock.AnyArg(), "prog-1", "Marine Biology", 24, 2, 3, string(models.CourseStatusUnreviewed), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{
		ProgramID:      "prog-1",
		Title:          "Marine Biology",
		MaxSectionSize: 24,
		MaxSections:    2,
		Difficulty:     3,
	}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, models.CourseStatusUnreviewed, course.Status)
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateSectionAssignsSequence(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(sequence), 0) + 1 FROM course_sections WHERE course_id = $1 AND deleted = FALSE")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	mock.ExpectExec("INSERT INTO course_sections").
		WithArgs(sqlmock.AnyArg(), "course-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	section := &models.CourseSection{CourseID: "course-1"}
	require.NoError(t, repo.CreateSection(context.Background(), nil, section))
	assert.Equal(t, 3, section.Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "program_id", "title", "max_section_size", "max_sections", "difficulty", "status"}).
		AddRow("course-1", "prog-1", "Astronomy", 30, 1, 2, string(models.CourseStatusAccepted))
	mock.ExpectQuery("FROM courses c").
		WithArgs("prog-1", string(models.CourseStatusAccepted)).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("prog-1", string(models.CourseStatusAccepted)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{
		ProgramID: "prog-1",
		Status:    models.CourseStatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, "Astronomy", courses[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
