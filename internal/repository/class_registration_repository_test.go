package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/models"
)

func newLedgerRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestClassRegistrationRepositoryBulkCreateWithTx(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewClassRegistrationRepository(db)

	// The whole batch goes out as one multi-row statement.
	mock.ExpectExec("INSERT INTO class_registrations").
		WithArgs(
			sqlmock.AnyArg(), "sec-1", "reg-1", true, nil, sqlmock.AnyArg(),
			sqlmock.AnyArg(), "sec-2", "reg-2", true, nil, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 2))

	err := repo.BulkCreateWithTx(context.Background(), nil, []models.ClassRegistration{
		{SectionID: "sec-1", RegistrationID: "reg-1", CreatedByLottery: true},
		{SectionID: "sec-2", RegistrationID: "reg-2", CreatedByLottery: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRegistrationRepositoryCountLotteryCreated(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewClassRegistrationRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.CountLotteryCreated(context.Background(), nil, "prog-1")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRegistrationRepositoryConfirm(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewClassRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_registrations SET confirmed_on = $2 WHERE id = $1 AND deleted = FALSE")).
		WithArgs("cr-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Confirm(context.Background(), "cr-1", time.Now().UTC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRegistrationRepositorySoftDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewClassRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_registrations SET deleted = TRUE WHERE id = $1 AND deleted = FALSE")).
		WithArgs("cr-404").
		WillReturnResult(sqlmock.NewResult(1, 0))

	err := repo.SoftDelete(context.Background(), "cr-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRegistrationRepositoryListByProgram(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewClassRegistrationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "section_id", "registration_id", "course_id", "created_by_lottery", "confirmed_on"}).
		AddRow("cr-1", "sec-1", "reg-1", "course-1", false, nil).
		AddRow("cr-2", "sec-2", "reg-2", "course-2", true, nil)
	mock.ExpectQuery("FROM class_registrations cr").
		WithArgs("prog-1").
		WillReturnRows(rows)

	seats, err := repo.ListByProgram(context.Background(), nil, "prog-1")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.False(t, seats[0].CreatedByLottery)
	assert.Equal(t, "course-1", seats[0].CourseID)
	assert.True(t, seats[1].CreatedByLottery)
	assert.Equal(t, "course-2", seats[1].CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
