package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

type assignmentRepository interface {
	ListByProgram(ctx context.Context, exec sqlx.ExtContext, programID string) ([]models.ClassRegistration, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassRegistration, error)
	Create(ctx context.Context, seat *models.ClassRegistration) error
	Confirm(ctx context.Context, id string, confirmedOn time.Time) error
	SoftDelete(ctx context.Context, id string) error
}

type assignmentRegistrationReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentRegistration, error)
}

// AssignmentService manages the class-registration ledger: manual seating,
// confirmation and release. Manual seats pass the same capacity and conflict
// checks the lottery applies.
type AssignmentService struct {
	ledger        assignmentRepository
	registrations assignmentRegistrationReader
	catalog       lotteryCatalogReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(ledger assignmentRepository, registrations assignmentRegistrationReader, catalog lotteryCatalogReader, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{ledger: ledger, registrations: registrations, catalog: catalog, validator: validate, logger: logger}
}

// Create seats a registration into a section manually. The seat is rejected
// when the section is full, when the registration already holds a seat in
// the same time slot, or when it already holds a seat in another section of
// the same course.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.ClassRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	registration, err := s.registrations.FindByID(ctx, req.RegistrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	slots, err := s.catalog.ListByProgram(ctx, registration.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	placements, err := s.catalog.ListPlacements(ctx, registration.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section placements")
	}
	existing, err := s.ledger.ListByProgram(ctx, nil, registration.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}

	var target *models.SectionPlacement
	for i := range placements {
		if placements[i].SectionID == req.SectionID {
			target = &placements[i]
			break
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section is not placed in this program")
	}

	state := newLotteryState(slots, placements, nil, existing)
	if state.filled[req.SectionID] >= target.Capacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section is already at capacity")
	}
	// The section may occupy several time slots; the seat must be free in
	// every one of them.
	if !state.eligible(req.RegistrationID, req.SectionID) {
		if courseSet := state.assignedCourse[req.RegistrationID]; courseSet != nil && courseSet[target.CourseID] {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration already holds a seat in this course")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already holds a seat in this time slot")
	}

	seat := &models.ClassRegistration{
		SectionID:        req.SectionID,
		RegistrationID:   req.RegistrationID,
		CreatedByLottery: false,
	}
	if err := s.ledger.Create(ctx, seat); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("manual seat created",
		zap.String("program_id", registration.ProgramID),
		zap.String("section_id", req.SectionID),
		zap.String("registration_id", req.RegistrationID))
	return seat, nil
}

// List returns ledger rows matching the filter with course context joined in.
func (s *AssignmentService) List(ctx context.Context, programID string, query dto.AssignmentQuery) ([]models.AssignmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment query")
	}
	filter := models.AssignmentFilter{
		ProgramID:      programID,
		SectionID:      query.SectionID,
		RegistrationID: query.RegistrationID,
		LotteryOnly:    query.LotteryOnly,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	details, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return details, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Confirm marks a seat as accepted by the student. Confirming twice is a
// no-op conflict.
func (s *AssignmentService) Confirm(ctx context.Context, id string) (*models.ClassRegistration, error) {
	seat, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if seat.ConfirmedOn != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is already confirmed")
	}
	confirmedOn := time.Now().UTC()
	if err := s.ledger.Confirm(ctx, id, confirmedOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm assignment")
	}
	seat.ConfirmedOn = &confirmedOn
	return seat, nil
}

// Release soft-deletes a seat, freeing its capacity and its time-slot and
// course exclusions.
func (s *AssignmentService) Release(ctx context.Context, id string) error {
	if err := s.ledger.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release assignment")
	}
	return nil
}
