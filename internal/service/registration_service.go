package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

type registrationRepository interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.StudentRegistration, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentRegistration, error)
	Exists(ctx context.Context, programID, userID string) (bool, error)
	Create(ctx context.Context, registration *models.StudentRegistration) error
	SoftDelete(ctx context.Context, id string) error
}

type registrationProgramReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type registrationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RegistrationService manages program enrollments.
type RegistrationService struct {
	registrations registrationRepository
	programs      registrationProgramReader
	users         registrationUserReader
	seats         seatCounter
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(registrations registrationRepository, programs registrationProgramReader, users registrationUserReader, seats seatCounter, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{registrations: registrations, programs: programs, users: users, seats: seats, validator: validate, logger: logger}
}

// Register enrolls a user into a program. One registration per (program,
// user) pair.
func (s *RegistrationService) Register(ctx context.Context, programID string, req dto.CreateRegistrationRequest) (*models.StudentRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if _, err := s.programs.FindByID(ctx, programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	exists, err := s.registrations.Exists(ctx, programID, req.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already registered for this program")
	}

	registration := &models.StudentRegistration{ProgramID: programID, UserID: req.UserID}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	s.logger.Info("student registered",
		zap.String("program_id", programID),
		zap.String("user_id", req.UserID),
		zap.String("registration_id", registration.ID))
	return registration, nil
}

// List returns registrations matching the filter.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.StudentRegistration, *models.Pagination, error) {
	registrations, total, err := s.registrations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get loads one registration.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.StudentRegistration, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return registration, nil
}

// Withdraw soft-deletes a registration. Registrations holding seats are
// protected; release the seats first.
func (s *RegistrationService) Withdraw(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.seats != nil {
		_, total, err := s.seats.List(ctx, models.AssignmentFilter{RegistrationID: id, PageSize: 1})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration seats")
		}
		if total > 0 {
			return appErrors.Clone(appErrors.ErrProtected, "registration still holds class seats")
		}
	}
	if err := s.registrations.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw registration")
	}
	return nil
}
