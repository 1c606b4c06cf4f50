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

func newPreferenceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPreferenceRepositoryReplaceForSections(t *testing.T) {
	db, mock, cleanup := newPreferenceRepoMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	mock.ExpectExec("UPDATE class_preferences SET deleted = TRUE").
		WithArgs("reg-1", sqlmock.AnyArg(), "sec-1", "sec-2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectExec("INSERT INTO class_preferences").
		WithArgs(sqlmock.AnyArg(), "reg-1", "sec-1", string(models.PreferenceCategoryMustTake), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO class_preferences").
		WithArgs(sqlmock.AnyArg(), "reg-1", "sec-2", string(models.PreferenceCategoryRanked), 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rank := 3
	err := repo.ReplaceForSections(context.Background(), "reg-1", []string{"sec-1", "sec-2"}, []models.ClassPreference{
		{SectionID: "sec-1", Category: models.PreferenceCategoryMustTake},
		{SectionID: "sec-2", Category: models.PreferenceCategoryRanked, Value: &rank},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryListSectionInterest(t *testing.T) {
	db, mock, cleanup := newPreferenceRepoMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	rows := sqlmock.NewRows([]string{"section_id", "registration_id", "category_count", "best_value"}).
		AddRow("sec-1", "reg-1", 2, 1).
		AddRow("sec-1", "reg-2", 1, nil)
	mock.ExpectQuery("SELECT cp.section_id, cp.registration_id").
		WithArgs("prog-1").
		WillReturnRows(rows)

	interest, err := repo.ListSectionInterest(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, interest, 2)
	assert.Equal(t, 2, interest[0].CategoryCount)
	require.NotNil(t, interest[0].BestValue)
	assert.Equal(t, 1, *interest[0].BestValue)
	assert.Nil(t, interest[1].BestValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryListByRegistration(t *testing.T) {
	db, mock, cleanup := newPreferenceRepoMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "registration_id", "section_id", "category", "value"}).
		AddRow("pref-1", "reg-1", "sec-1", string(models.PreferenceCategoryWantTake), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE registration_id = $1 AND deleted = FALSE")).
		WithArgs("reg-1").
		WillReturnRows(rows)

	prefs, err := repo.ListByRegistration(context.Background(), "reg-1")
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, models.PreferenceCategoryWantTake, prefs[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
