package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

func TestRegistrationRegister(t *testing.T) {
	fx := newRegistrationFixture(registrationFixtureConfig{})

	registration, err := fx.service.Register(context.Background(), "prog-1", dto.CreateRegistrationRequest{UserID: regUUID(7)})
	require.NoError(t, err)
	assert.Equal(t, "prog-1", registration.ProgramID)
	assert.Equal(t, regUUID(7), registration.UserID)
}

func TestRegistrationRegisterRejectsDuplicate(t *testing.T) {
	fx := newRegistrationFixture(registrationFixtureConfig{alreadyRegistered: true})

	_, err := fx.service.Register(context.Background(), "prog-1", dto.CreateRegistrationRequest{UserID: regUUID(7)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRegistrationRegisterUnknownProgram(t *testing.T) {
	fx := newRegistrationFixture(registrationFixtureConfig{missingProgram: true})

	_, err := fx.service.Register(context.Background(), "prog-404", dto.CreateRegistrationRequest{UserID: regUUID(7)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRegistrationWithdrawProtectedBySeats(t *testing.T) {
	fx := newRegistrationFixture(registrationFixtureConfig{seats: 1})

	err := fx.service.Withdraw(context.Background(), "reg-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrProtected))
}

func TestRegistrationWithdraw(t *testing.T) {
	fx := newRegistrationFixture(registrationFixtureConfig{})

	err := fx.service.Withdraw(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.True(t, fx.repo.deleted)
}

// --- Fixtures ---

type registrationFixtureConfig struct {
	alreadyRegistered bool
	missingProgram    bool
	seats             int
}

type registrationFixture struct {
	service *RegistrationService
	repo    *registrationRepoStub
}

func newRegistrationFixture(cfg registrationFixtureConfig) *registrationFixture {
	repo := &registrationRepoStub{exists: cfg.alreadyRegistered}
	service := NewRegistrationService(
		repo,
		programReaderStub{missing: cfg.missingProgram},
		userReaderStub{},
		seatCounterStub{total: cfg.seats},
		nil,
		nil,
	)
	return &registrationFixture{service: service, repo: repo}
}

type registrationRepoStub struct {
	exists  bool
	deleted bool
}

func (s *registrationRepoStub) List(ctx context.Context, filter models.RegistrationFilter) ([]models.StudentRegistration, int, error) {
	return nil, 0, nil
}

func (s *registrationRepoStub) FindByID(ctx context.Context, id string) (*models.StudentRegistration, error) {
	return &models.StudentRegistration{ID: id, ProgramID: "prog-1", UserID: "user-1"}, nil
}

func (s *registrationRepoStub) Exists(ctx context.Context, programID, userID string) (bool, error) {
	return s.exists, nil
}

func (s *registrationRepoStub) Create(ctx context.Context, registration *models.StudentRegistration) error {
	registration.ID = "reg-created"
	return nil
}

func (s *registrationRepoStub) SoftDelete(ctx context.Context, id string) error {
	s.deleted = true
	return nil
}

type userReaderStub struct{}

func (s userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, sql.ErrNoRows
	}
	return &models.User{ID: id, Email: "student@example.com"}, nil
}
