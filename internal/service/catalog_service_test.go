package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

func TestCatalogDeleteProgramProtectedByCourses(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{
		courses: []models.Course{{ID: "course-1", ProgramID: "prog-1", Title: "Robotics"}},
	})

	err := fx.service.DeleteProgram(context.Background(), "prog-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrProtected))
	assert.False(t, fx.programs.deleted)
}

func TestCatalogDeleteProgramWithoutCourses(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{})

	err := fx.service.DeleteProgram(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.True(t, fx.programs.deleted)
}

func TestCatalogDeleteCourseProtectedBySeats(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{
		courses:  []models.Course{{ID: "course-1", ProgramID: "prog-1", Title: "Robotics"}},
		sections: []models.CourseSection{{ID: "sec-1", CourseID: "course-1", Sequence: 1}},
		seats:    1,
	})

	err := fx.service.DeleteCourse(context.Background(), "course-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrProtected))
}

func TestCatalogAddSectionEnforcesMaxSections(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{
		courses:  []models.Course{{ID: "course-1", ProgramID: "prog-1", Title: "Robotics", MaxSections: 1}},
		sections: []models.CourseSection{{ID: "sec-1", CourseID: "course-1", Sequence: 1}},
	})

	_, err := fx.service.AddSection(context.Background(), "course-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestCatalogAddTimeSlotRejectsDuplicateStart(t *testing.T) {
	start := time.Date(2026, 7, 6, 9, 0, 0, 0, time.UTC)
	fx := newCatalogFixture(catalogFixtureConfig{
		slots: []models.TimeSlot{{ID: "slot-1", ProgramID: "prog-1", StartAt: start, EndAt: start.Add(time.Hour)}},
	})

	_, err := fx.service.AddTimeSlot(context.Background(), "prog-1", dto.CreateTimeSlotRequest{
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestCatalogDeleteTimeSlotProtectedByPlacements(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 5)},
	})

	err := fx.service.DeleteTimeSlot(context.Background(), "slot-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrProtected))
}

func TestCatalogUpdateProgramRejectsInvertedDates(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{})

	end := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.UpdateProgram(context.Background(), "prog-1", dto.UpdateProgramRequest{EndAt: &end})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCatalogCreateCourseStartsUnreviewed(t *testing.T) {
	fx := newCatalogFixture(catalogFixtureConfig{})

	course, err := fx.service.CreateCourse(context.Background(), "prog-1", dto.CreateCourseRequest{
		Title:          "Robotics",
		MaxSectionSize: 20,
		MaxSections:    2,
		Difficulty:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusUnreviewed, course.Status)
}

// --- Fixtures ---

type catalogFixtureConfig struct {
	courses    []models.Course
	sections   []models.CourseSection
	slots      []models.TimeSlot
	placements []models.SectionPlacement
	seats      int
}

type catalogFixture struct {
	service  *CatalogService
	programs *programRepoStub
}

func newCatalogFixture(cfg catalogFixtureConfig) *catalogFixture {
	programs := &programRepoStub{}
	service := NewCatalogService(
		programs,
		&courseRepoStub{courses: cfg.courses, sections: cfg.sections},
		&timeSlotRepoStub{slots: cfg.slots, placements: cfg.placements},
		seatCounterStub{total: cfg.seats},
		nil,
		0,
		nil,
		nil,
	)
	return &catalogFixture{service: service, programs: programs}
}

type programRepoStub struct {
	deleted bool
}

func (s *programRepoStub) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	return nil, 0, nil
}

func (s *programRepoStub) FindByID(ctx context.Context, id string) (*models.Program, error) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	return &models.Program{ID: id, Name: "Summer Program", StartAt: start, EndAt: start.AddDate(0, 1, 0)}, nil
}

func (s *programRepoStub) Create(ctx context.Context, program *models.Program) error {
	program.ID = "prog-created"
	return nil
}

func (s *programRepoStub) Update(ctx context.Context, program *models.Program) error {
	return nil
}

func (s *programRepoStub) SoftDelete(ctx context.Context, id string) error {
	s.deleted = true
	return nil
}

type courseRepoStub struct {
	courses  []models.Course
	sections []models.CourseSection
}

func (s *courseRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return s.courses, len(s.courses), nil
}

func (s *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for i := range s.courses {
		if s.courses[i].ID == id {
			return &s.courses[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-created"
	return nil
}

func (s *courseRepoStub) Update(ctx context.Context, course *models.Course) error {
	return nil
}

func (s *courseRepoStub) SoftDelete(ctx context.Context, id string) error {
	return nil
}

func (s *courseRepoStub) ListSections(ctx context.Context, courseID string) ([]models.CourseSection, error) {
	return s.sections, nil
}

func (s *courseRepoStub) CreateSection(ctx context.Context, exec sqlx.ExtContext, section *models.CourseSection) error {
	section.ID = "sec-created"
	section.Sequence = len(s.sections) + 1
	return nil
}

func (s *courseRepoStub) SoftDeleteSection(ctx context.Context, id string) error {
	return nil
}

type timeSlotRepoStub struct {
	slots      []models.TimeSlot
	placements []models.SectionPlacement
}

func (s *timeSlotRepoStub) ListByProgram(ctx context.Context, programID string) ([]models.TimeSlot, error) {
	return s.slots, nil
}

func (s *timeSlotRepoStub) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	for i := range s.slots {
		if s.slots[i].ID == id {
			return &s.slots[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *timeSlotRepoStub) Create(ctx context.Context, slot *models.TimeSlot) error {
	slot.ID = "slot-created"
	return nil
}

func (s *timeSlotRepoStub) SoftDelete(ctx context.Context, id string) error {
	return nil
}

func (s *timeSlotRepoStub) ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error) {
	return s.placements, nil
}

type seatCounterStub struct {
	total int
}

func (s seatCounterStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	return nil, s.total, nil
}
