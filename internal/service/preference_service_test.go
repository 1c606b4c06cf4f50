package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

func TestPreferenceSubmitReplacesNamedSections(t *testing.T) {
	fx := newPreferenceFixture(preferenceFixtureConfig{
		placements: []models.SectionPlacement{
			placement(secUUID(1), "course-1", "slot-1", 1, 5),
			placement(secUUID(2), "course-2", "slot-1", 1, 5),
		},
	})

	three := 3
	_, err := fx.service.Submit(context.Background(), "reg-1", dto.SubmitPreferencesRequest{
		Preferences: []dto.PreferenceItem{
			{SectionID: secUUID(1), Category: "MUST_TAKE"},
			{SectionID: secUUID(1), Category: "RANKED", Value: &three},
			{SectionID: secUUID(2), Category: "WANT_TAKE"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fx.prefs.lastSections, 2)
	assert.ElementsMatch(t, []string{secUUID(1), secUUID(2)}, fx.prefs.lastSections)
	require.Len(t, fx.prefs.lastPrefs, 3)
	assert.Equal(t, models.PreferenceCategoryMustTake, fx.prefs.lastPrefs[0].Category)
}

func TestPreferenceSubmitRejectsUnplacedSection(t *testing.T) {
	fx := newPreferenceFixture(preferenceFixtureConfig{
		placements: []models.SectionPlacement{placement(secUUID(1), "course-1", "slot-1", 1, 5)},
	})

	_, err := fx.service.Submit(context.Background(), "reg-1", dto.SubmitPreferencesRequest{
		Preferences: []dto.PreferenceItem{{SectionID: secUUID(9), Category: "WANT_TAKE"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPreferenceSubmitRequiresValueForRanked(t *testing.T) {
	fx := newPreferenceFixture(preferenceFixtureConfig{
		placements: []models.SectionPlacement{placement(secUUID(1), "course-1", "slot-1", 1, 5)},
	})

	_, err := fx.service.Submit(context.Background(), "reg-1", dto.SubmitPreferencesRequest{
		Preferences: []dto.PreferenceItem{{SectionID: secUUID(1), Category: "RANKED"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPreferenceSubmitUnknownRegistration(t *testing.T) {
	fx := newPreferenceFixture(preferenceFixtureConfig{missingRegistration: true})

	_, err := fx.service.Submit(context.Background(), "reg-404", dto.SubmitPreferencesRequest{
		Preferences: []dto.PreferenceItem{{SectionID: secUUID(1), Category: "WANT_TAKE"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPreferenceDemandAggregatesPerSection(t *testing.T) {
	fx := newPreferenceFixture(preferenceFixtureConfig{
		placements: []models.SectionPlacement{
			placement(secUUID(1), "course-1", "slot-1", 1, 10),
			placement(secUUID(2), "course-2", "slot-1", 1, 8),
		},
		interest: []models.SectionInterest{
			{SectionID: secUUID(1), RegistrationID: "reg-1", CategoryCount: 2},
			{SectionID: secUUID(1), RegistrationID: "reg-2", CategoryCount: 1},
			{SectionID: secUUID(2), RegistrationID: "reg-1", CategoryCount: 1},
		},
	})

	demand, err := fx.service.Demand(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, demand, 2)
	assert.Equal(t, 2, demand[0].Interested)
	assert.Equal(t, 10, demand[0].Capacity)
	assert.Equal(t, 1, demand[1].Interested)
}

// --- Fixtures ---

type preferenceFixtureConfig struct {
	placements          []models.SectionPlacement
	interest            []models.SectionInterest
	missingRegistration bool
}

type preferenceFixture struct {
	service *PreferenceService
	prefs   *preferenceRepoStub
}

func newPreferenceFixture(cfg preferenceFixtureConfig) *preferenceFixture {
	prefs := &preferenceRepoStub{interest: cfg.interest}
	service := NewPreferenceService(
		prefs,
		registrationReaderStub{missing: cfg.missingRegistration},
		catalogReaderStub{placements: cfg.placements},
		nil,
		0,
		nil,
		nil,
	)
	return &preferenceFixture{service: service, prefs: prefs}
}

type preferenceRepoStub struct {
	stored       []models.ClassPreference
	interest     []models.SectionInterest
	lastSections []string
	lastPrefs    []models.ClassPreference
}

func (s *preferenceRepoStub) ListByRegistration(ctx context.Context, registrationID string) ([]models.ClassPreference, error) {
	return s.stored, nil
}

func (s *preferenceRepoStub) ReplaceForSections(ctx context.Context, registrationID string, sectionIDs []string, prefs []models.ClassPreference) error {
	s.lastSections = sectionIDs
	s.lastPrefs = prefs
	s.stored = prefs
	return nil
}

func (s *preferenceRepoStub) ListSectionInterest(ctx context.Context, programID string) ([]models.SectionInterest, error) {
	return s.interest, nil
}
