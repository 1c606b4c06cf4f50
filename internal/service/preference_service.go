package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

type preferenceRepository interface {
	ListByRegistration(ctx context.Context, registrationID string) ([]models.ClassPreference, error)
	ReplaceForSections(ctx context.Context, registrationID string, sectionIDs []string, prefs []models.ClassPreference) error
	ListSectionInterest(ctx context.Context, programID string) ([]models.SectionInterest, error)
}

type preferenceRegistrationReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentRegistration, error)
}

type preferencePlacementReader interface {
	ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error)
}

// PreferenceService manages declared section preferences and their
// aggregated demand view.
type PreferenceService struct {
	preferences   preferenceRepository
	registrations preferenceRegistrationReader
	placements    preferencePlacementReader
	cache         catalogCache
	demandTTL     time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPreferenceService constructs PreferenceService.
func NewPreferenceService(preferences preferenceRepository, registrations preferenceRegistrationReader, placements preferencePlacementReader, cache catalogCache, demandTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if demandTTL <= 0 {
		demandTTL = time.Minute
	}
	return &PreferenceService{preferences: preferences, registrations: registrations, placements: placements, cache: cache, demandTTL: demandTTL, validator: validate, logger: logger}
}

// Submit replaces the registration's preferences for every section the
// payload names. Sections not named keep their existing preferences, so a
// student can edit one course at a time. RANKED items require a value.
func (s *PreferenceService) Submit(ctx context.Context, registrationID string, req dto.SubmitPreferencesRequest) ([]models.ClassPreference, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference payload")
	}

	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	placements, err := s.placements.ListPlacements(ctx, registration.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section placements")
	}
	placed := make(map[string]bool, len(placements))
	for _, placement := range placements {
		placed[placement.SectionID] = true
	}

	sectionIDs := make([]string, 0, len(req.Preferences))
	seen := make(map[string]bool, len(req.Preferences))
	prefs := make([]models.ClassPreference, 0, len(req.Preferences))
	for _, item := range req.Preferences {
		if !placed[item.SectionID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s is not offered in this program", item.SectionID))
		}
		if item.Category == string(models.PreferenceCategoryRanked) && item.Value == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ranked preferences require a value")
		}
		if !seen[item.SectionID] {
			seen[item.SectionID] = true
			sectionIDs = append(sectionIDs, item.SectionID)
		}
		prefs = append(prefs, models.ClassPreference{
			RegistrationID: registrationID,
			SectionID:      item.SectionID,
			Category:       models.PreferenceCategory(item.Category),
			Value:          item.Value,
		})
	}

	if err := s.preferences.ReplaceForSections(ctx, registrationID, sectionIDs, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store preferences")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("preferences:demand:%s", registration.ProgramID)); err != nil {
			s.logger.Warn("failed to invalidate demand cache", zap.String("program_id", registration.ProgramID), zap.Error(err))
		}
	}

	current, err := s.preferences.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload preferences")
	}
	return current, nil
}

// List returns a registration's live preferences.
func (s *PreferenceService) List(ctx context.Context, registrationID string) ([]models.ClassPreference, error) {
	if _, err := s.registrations.FindByID(ctx, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	prefs, err := s.preferences.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list preferences")
	}
	return prefs, nil
}

// Demand reports how many distinct registrations declared interest in each
// placed section of a program, cached briefly.
func (s *PreferenceService) Demand(ctx context.Context, programID string) ([]dto.SectionDemand, error) {
	key := fmt.Sprintf("preferences:demand:%s", programID)
	if s.cache != nil {
		var cached []dto.SectionDemand
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	placements, err := s.placements.ListPlacements(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section placements")
	}
	interest, err := s.preferences.ListSectionInterest(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section interest")
	}

	counts := make(map[string]int, len(interest))
	for _, row := range interest {
		counts[row.SectionID]++
	}

	demand := make([]dto.SectionDemand, 0, len(placements))
	for _, placement := range placements {
		demand = append(demand, dto.SectionDemand{
			SectionID:  placement.SectionID,
			CourseID:   placement.CourseID,
			TimeSlotID: placement.TimeSlotID,
			Interested: counts[placement.SectionID],
			Capacity:   placement.Capacity,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, demand, s.demandTTL); err != nil {
			s.logger.Warn("failed to cache section demand", zap.String("program_id", programID), zap.Error(err))
		}
	}
	return demand, nil
}
