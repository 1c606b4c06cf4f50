package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

func TestAssignmentCreateSeatsManually(t *testing.T) {
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement(secUUID(1), "course-1", "slot-1", 1, 2)},
	})

	seat, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(1),
		RegistrationID: regUUID(1),
	})
	require.NoError(t, err)
	assert.False(t, seat.CreatedByLottery)
	assert.Equal(t, secUUID(1), seat.SectionID)
	require.Len(t, fx.ledger.created, 1)
}

func TestAssignmentCreateRejectsFullSection(t *testing.T) {
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement(secUUID(1), "course-1", "slot-1", 1, 1)},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: secUUID(1), RegistrationID: regUUID(9), CreatedByLottery: true},
		},
	})

	_, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(1),
		RegistrationID: regUUID(1),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, fx.ledger.created)
}

func TestAssignmentCreateRejectsTimeSlotClash(t *testing.T) {
	// The registration already sits in a section sharing slot-1 with the target.
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{
			placement(secUUID(1), "course-a", "slot-1", 1, 5),
			placement(secUUID(2), "course-b", "slot-1", 1, 5),
		},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: secUUID(1), RegistrationID: regUUID(1), CreatedByLottery: true},
		},
	})

	_, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(2),
		RegistrationID: regUUID(1),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignmentCreateRejectsClashWithMultiSlotSection(t *testing.T) {
	// The held section occupies slot-1 and slot-2, so a seat in any other
	// section placed in either slot must be refused.
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement(secUUID(1), "course-a", "slot-1", 1, 5),
			placement(secUUID(1), "course-a", "slot-2", 1, 5),
			placement(secUUID(2), "course-b", "slot-2", 1, 5),
		},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: secUUID(1), RegistrationID: regUUID(1), CreatedByLottery: true},
		},
	})

	_, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(2),
		RegistrationID: regUUID(1),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, fx.ledger.created)
}

func TestAssignmentCreateRejectsDuplicateCourse(t *testing.T) {
	// Two sections of course-1 in different slots; holding one excludes the other.
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement(secUUID(1), "course-1", "slot-1", 1, 5),
			placement(secUUID(2), "course-1", "slot-2", 2, 5),
		},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: secUUID(1), RegistrationID: regUUID(1), CreatedByLottery: false},
		},
	})

	_, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(2),
		RegistrationID: regUUID(1),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignmentCreateUnknownSection(t *testing.T) {
	fx := newAssignmentFixture(assignmentFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9)},
	})

	_, err := fx.service.Create(context.Background(), dto.CreateAssignmentRequest{
		SectionID:      secUUID(99),
		RegistrationID: regUUID(1),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAssignmentConfirm(t *testing.T) {
	fx := newAssignmentFixture(assignmentFixtureConfig{
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: secUUID(1), RegistrationID: regUUID(1)},
		},
	})

	seat, err := fx.service.Confirm(context.Background(), "cr-1")
	require.NoError(t, err)
	require.NotNil(t, seat.ConfirmedOn)

	_, err = fx.service.Confirm(context.Background(), "cr-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignmentReleaseNotFound(t *testing.T) {
	fx := newAssignmentFixture(assignmentFixtureConfig{})

	err := fx.service.Release(context.Background(), "cr-missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

// --- Fixtures ---

type assignmentFixtureConfig struct {
	slots      []models.TimeSlot
	placements []models.SectionPlacement
	existing   []models.ClassRegistration
}

type assignmentFixture struct {
	service *AssignmentService
	ledger  *assignmentRepoStub
}

func newAssignmentFixture(cfg assignmentFixtureConfig) *assignmentFixture {
	ledger := &assignmentRepoStub{existing: cfg.existing}
	service := NewAssignmentService(
		ledger,
		registrationReaderStub{},
		catalogReaderStub{slots: cfg.slots, placements: cfg.placements},
		nil,
		nil,
	)
	return &assignmentFixture{service: service, ledger: ledger}
}

// Request payloads carry uuid-validated ids, so fixtures fabricate
// uuid-shaped values.
func regUUID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

func secUUID(n int) string {
	return fmt.Sprintf("11111111-0000-4000-8000-%012d", n)
}

type registrationReaderStub struct {
	missing bool
}

func (s registrationReaderStub) FindByID(ctx context.Context, id string) (*models.StudentRegistration, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.StudentRegistration{ID: id, ProgramID: "prog-1", UserID: "user-1"}, nil
}

type assignmentRepoStub struct {
	existing []models.ClassRegistration
	created  []models.ClassRegistration
}

func (s *assignmentRepoStub) ListByProgram(ctx context.Context, exec sqlx.ExtContext, programID string) ([]models.ClassRegistration, error) {
	return s.existing, nil
}

func (s *assignmentRepoStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	details := make([]models.AssignmentDetail, 0, len(s.existing))
	for _, seat := range s.existing {
		details = append(details, models.AssignmentDetail{ClassRegistration: seat})
	}
	return details, len(details), nil
}

func (s *assignmentRepoStub) FindByID(ctx context.Context, id string) (*models.ClassRegistration, error) {
	for i := range s.existing {
		if s.existing[i].ID == id {
			return &s.existing[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) Create(ctx context.Context, seat *models.ClassRegistration) error {
	seat.ID = "cr-created"
	s.created = append(s.created, *seat)
	return nil
}

func (s *assignmentRepoStub) Confirm(ctx context.Context, id string, confirmedOn time.Time) error {
	for i := range s.existing {
		if s.existing[i].ID == id {
			s.existing[i].ConfirmedOn = &confirmedOn
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *assignmentRepoStub) SoftDelete(ctx context.Context, id string) error {
	for i := range s.existing {
		if s.existing[i].ID == id {
			s.existing[i].Deleted = true
			return nil
		}
	}
	return sql.ErrNoRows
}
