package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	SoftDelete(ctx context.Context, id string) error
}

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
	ListSections(ctx context.Context, courseID string) ([]models.CourseSection, error)
	CreateSection(ctx context.Context, exec sqlx.ExtContext, section *models.CourseSection) error
	SoftDeleteSection(ctx context.Context, id string) error
}

type timeSlotRepository interface {
	ListByProgram(ctx context.Context, programID string) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	SoftDelete(ctx context.Context, id string) error
	ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error)
}

type seatCounter interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CatalogService manages programs, courses, sections and time slots.
type CatalogService struct {
	programs  programRepository
	courses   courseRepository
	slots     timeSlotRepository
	seats     seatCounter
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(programs programRepository, courses courseRepository, slots timeSlotRepository, seats seatCounter, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CatalogService{programs: programs, courses: courses, slots: slots, seats: seats, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// ListPrograms returns programs with pagination metadata.
func (s *CatalogService) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.programs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetProgram loads one program.
func (s *CatalogService) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.programs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// CreateProgram registers a new program.
func (s *CatalogService) CreateProgram(ctx context.Context, req dto.CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program := &models.Program{
		Name:           req.Name,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		TimeBlockCount: req.TimeBlockCount,
		ArchiveOn:      req.ArchiveOn,
	}
	if err := s.programs.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// UpdateProgram applies a partial update.
func (s *CatalogService) UpdateProgram(ctx context.Context, id string, req dto.UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		program.Name = *req.Name
	}
	if req.StartAt != nil {
		program.StartAt = *req.StartAt
	}
	if req.EndAt != nil {
		program.EndAt = *req.EndAt
	}
	if req.TimeBlockCount != nil {
		program.TimeBlockCount = *req.TimeBlockCount
	}
	if req.ArchiveOn != nil {
		program.ArchiveOn = req.ArchiveOn
	}
	if program.EndAt.Before(program.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	if err := s.programs.Update(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// DeleteProgram soft-deletes a program. Programs that still own courses are
// protected.
func (s *CatalogService) DeleteProgram(ctx context.Context, id string) error {
	if _, err := s.GetProgram(ctx, id); err != nil {
		return err
	}
	_, total, err := s.courses.List(ctx, models.CourseFilter{ProgramID: id, PageSize: 1})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program courses")
	}
	if total > 0 {
		return appErrors.Clone(appErrors.ErrProtected, "program still owns courses")
	}
	if err := s.programs.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	return nil
}

// ListCourses returns courses for a program, cached per filter.
func (s *CatalogService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	type cachedCourses struct {
		Courses []models.Course `json:"courses"`
		Total   int             `json:"total"`
	}
	key := fmt.Sprintf("catalog:courses:%s:%s:%s:%d:%d", filter.ProgramID, filter.Status, filter.Search, filter.Page, filter.PageSize)
	if s.cache != nil {
		var cached cachedCourses
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Courses, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCourses{Courses: courses, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache course list", zap.Error(err))
		}
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetCourse loads one course.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// CreateCourse submits a course offering to a program.
func (s *CatalogService) CreateCourse(ctx context.Context, programID string, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	course := &models.Course{
		ProgramID:      programID,
		Title:          req.Title,
		MaxSectionSize: req.MaxSectionSize,
		MaxSections:    req.MaxSections,
		Difficulty:     req.Difficulty,
		Status:         models.CourseStatusUnreviewed,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCourses(ctx, programID)
	return course, nil
}

// UpdateCourse applies a partial update, including review status changes.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req dto.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.MaxSectionSize != nil {
		course.MaxSectionSize = *req.MaxSectionSize
	}
	if req.MaxSections != nil {
		course.MaxSections = *req.MaxSections
	}
	if req.Difficulty != nil {
		course.Difficulty = *req.Difficulty
	}
	if req.Status != nil {
		course.Status = models.CourseStatus(*req.Status)
	}
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCourses(ctx, course.ProgramID)
	return course, nil
}

// DeleteCourse soft-deletes a course. Courses with seated sections are
// protected.
func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	sections, err := s.courses.ListSections(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sections")
	}
	for _, section := range sections {
		if err := s.ensureSectionUnseated(ctx, section.ID); err != nil {
			return err
		}
	}
	if err := s.courses.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCourses(ctx, course.ProgramID)
	return nil
}

// ListSections returns a course's sections.
func (s *CatalogService) ListSections(ctx context.Context, courseID string) ([]models.CourseSection, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	sections, err := s.courses.ListSections(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sections")
	}
	return sections, nil
}

// AddSection appends a section to a course up to its max_sections limit.
func (s *CatalogService) AddSection(ctx context.Context, courseID string) (*models.CourseSection, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	sections, err := s.courses.ListSections(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sections")
	}
	if len(sections) >= course.MaxSections {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course already has the maximum number of sections")
	}
	section := &models.CourseSection{CourseID: courseID}
	if err := s.courses.CreateSection(ctx, nil, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course section")
	}
	return section, nil
}

// DeleteSection soft-deletes a section that holds no seats.
func (s *CatalogService) DeleteSection(ctx context.Context, sectionID string) error {
	if err := s.ensureSectionUnseated(ctx, sectionID); err != nil {
		return err
	}
	if err := s.courses.SoftDeleteSection(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course section")
	}
	return nil
}

// ListTimeSlots returns a program's slots in start order.
func (s *CatalogService) ListTimeSlots(ctx context.Context, programID string) ([]models.TimeSlot, error) {
	if _, err := s.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByProgram(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// AddTimeSlot appends a schedulable interval to a program.
func (s *CatalogService) AddTimeSlot(ctx context.Context, programID string, req dto.CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}
	if _, err := s.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	existing, err := s.slots.ListByProgram(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	for _, slot := range existing {
		if slot.StartAt.Equal(req.StartAt) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a time slot with this start time already exists")
		}
	}
	slot := &models.TimeSlot{ProgramID: programID, StartAt: req.StartAt, EndAt: req.EndAt}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time slot")
	}
	return slot, nil
}

// DeleteTimeSlot soft-deletes a slot with no section placements.
func (s *CatalogService) DeleteTimeSlot(ctx context.Context, id string) error {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	placements, err := s.slots.ListPlacements(ctx, slot.ProgramID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list section placements")
	}
	for _, placement := range placements {
		if placement.TimeSlotID == id {
			return appErrors.Clone(appErrors.ErrProtected, "time slot still has section placements")
		}
	}
	if err := s.slots.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time slot")
	}
	return nil
}

func (s *CatalogService) ensureSectionUnseated(ctx context.Context, sectionID string) error {
	if s.seats == nil {
		return nil
	}
	_, total, err := s.seats.List(ctx, models.AssignmentFilter{SectionID: sectionID, PageSize: 1})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section seats")
	}
	if total > 0 {
		return appErrors.Clone(appErrors.ErrProtected, "section still has registered students")
	}
	return nil
}

func (s *CatalogService) invalidateCourses(ctx context.Context, programID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("catalog:courses:%s:*", programID)); err != nil {
		s.logger.Warn("failed to invalidate course cache", zap.String("program_id", programID), zap.Error(err))
	}
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
