package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

func TestLotteryRunFillsSectionUpToCapacity(t *testing.T) {
	// One slot, one section with capacity 2, three interested registrations.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 2)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-1", RegistrationID: "reg-2", CategoryCount: 1},
			{SectionID: "sec-1", RegistrationID: "reg-3", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 2)
	for _, seat := range fx.ledger.created {
		assert.True(t, seat.CreatedByLottery)
		assert.Nil(t, seat.ConfirmedOn)
		assert.Equal(t, "sec-1", seat.SectionID)
	}
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, 2, resp.Sections[0].Assigned)
	assert.Equal(t, 3, resp.Sections[0].Interested)
	require.NotNil(t, fx.runs.last)
	assert.Equal(t, models.LotteryRunStatusCompleted, fx.runs.last.Status)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLotteryRunNeverDoubleBooksATimeSlot(t *testing.T) {
	// reg-1 wants two sections that share slot-1; only one may be granted.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{
			placement("sec-a", "course-a", "slot-1", 1, 5),
			placement("sec-b", "course-b", "slot-1", 1, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-a", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-b", RegistrationID: "reg-1", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "sec-a", fx.ledger.created[0].SectionID)
}

func TestLotteryRunMultiSlotSectionBlocksSharedSlot(t *testing.T) {
	// sec-m occupies slot-1 and slot-2; reg-1 also wants sec-a in slot-1.
	// Once reg-1 is seated in sec-a, sec-m must be refused because one of
	// its slots is already taken.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement("sec-a", "course-a", "slot-1", 1, 5),
			placement("sec-m", "course-m", "slot-1", 1, 5),
			placement("sec-m", "course-m", "slot-2", 1, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-a", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-m", RegistrationID: "reg-1", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "sec-a", fx.ledger.created[0].SectionID)
}

func TestLotteryRunMultiSlotSectionReservesEverySlot(t *testing.T) {
	// A seat in sec-m (slot-1 and slot-2) must claim both slots, so sec-z
	// in slot-2 is off limits afterwards. sec-m itself is filled exactly
	// once even though it appears under two slots.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement("sec-m", "course-m", "slot-1", 1, 5),
			placement("sec-m", "course-m", "slot-2", 1, 5),
			placement("sec-z", "course-z", "slot-2", 1, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-m", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-z", RegistrationID: "reg-1", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "sec-m", fx.ledger.created[0].SectionID)

	seen := 0
	for _, outcome := range resp.Sections {
		if outcome.SectionID == "sec-m" {
			seen++
		}
	}
	assert.Equal(t, 1, seen)
}

func TestLotteryRunExcludesDuplicateCourse(t *testing.T) {
	// reg-1 already holds a manual seat in section X of course-1; its
	// preference for section Y of the same course must be skipped even
	// though Y is in a different slot with room to spare.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement("sec-x", "course-1", "slot-1", 1, 5),
			placement("sec-y", "course-1", "slot-2", 2, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-y", RegistrationID: "reg-1", CategoryCount: 1},
		},
		existing: []models.ClassRegistration{
			{ID: "cr-manual", SectionID: "sec-x", RegistrationID: "reg-1", CreatedByLottery: false},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.AssignmentsCreated)
	assert.Empty(t, fx.ledger.created)
}

func TestLotteryRunExcludesCourseOfUnplacedSeat(t *testing.T) {
	// reg-1 holds a seat in sec-x of course-1, but sec-x no longer has a
	// live placement row. The ledger row's own course id must still exclude
	// course-1's other sections.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-1", 9), slotAt("slot-2", 11)},
		placements: []models.SectionPlacement{
			placement("sec-y", "course-1", "slot-2", 2, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-y", RegistrationID: "reg-1", CategoryCount: 1},
		},
		existing: []models.ClassRegistration{
			{ID: "cr-manual", SectionID: "sec-x", RegistrationID: "reg-1", CourseID: "course-1", CreatedByLottery: false},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.AssignmentsCreated)
	assert.Empty(t, fx.ledger.created)
}

func TestLotteryRunRollsBackWhenSeatInsertFails(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 2)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-1", CategoryCount: 1},
		},
		seatInsertErr: errors.New("insert class registrations: connection reset"),
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Nil(t, fx.runs.last)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLotteryRunRollsBackWhenRunRecordFails(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 2)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-1", CategoryCount: 1},
		},
		runRecordErr: errors.New("insert lottery run: connection reset"),
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Nil(t, fx.runs.last)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLotteryRunGuardRejectsSecondRun(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 2)},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: "sec-1", RegistrationID: "reg-1", CreatedByLottery: true},
		},
	})

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLotteryAlreadyRun))
	assert.Empty(t, fx.ledger.created)
	assert.Nil(t, fx.runs.last)
}

func TestLotteryRunDeterministicTieBreak(t *testing.T) {
	// Capacity 1, five equally weighted candidates: the lowest
	// registration id wins, every time.
	build := func() *lotteryFixture {
		return newLotteryFixture(t, lotteryFixtureConfig{
			slots:      []models.TimeSlot{slotAt("slot-1", 9)},
			placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 1)},
			interest: []models.SectionInterest{
				{SectionID: "sec-1", RegistrationID: "reg-5", CategoryCount: 1},
				{SectionID: "sec-1", RegistrationID: "reg-3", CategoryCount: 1},
				{SectionID: "sec-1", RegistrationID: "reg-1", CategoryCount: 1},
				{SectionID: "sec-1", RegistrationID: "reg-4", CategoryCount: 1},
				{SectionID: "sec-1", RegistrationID: "reg-2", CategoryCount: 1},
			},
		})
	}

	var winners []string
	for i := 0; i < 3; i++ {
		fx := build()
		fx.mock.ExpectBegin()
		fx.mock.ExpectCommit()
		resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
		require.NoError(t, err)
		require.Equal(t, 1, resp.AssignmentsCreated)
		winners = append(winners, fx.ledger.created[0].RegistrationID)
	}
	assert.Equal(t, []string{"reg-1", "reg-1", "reg-1"}, winners)
}

func TestLotteryRunRanksByCategoryCountAscending(t *testing.T) {
	// Fewer declared categories wins under the default strategy.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 1)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-a", CategoryCount: 3},
			{SectionID: "sec-1", RegistrationID: "reg-b", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "reg-b", fx.ledger.created[0].RegistrationID)
}

func TestLotteryRunWeightedStrategyPrefersBestValue(t *testing.T) {
	one, four := 1, 4
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 1)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-a", CategoryCount: 1, BestValue: &four},
			{SectionID: "sec-1", RegistrationID: "reg-b", CategoryCount: 1, BestValue: &one},
			{SectionID: "sec-1", RegistrationID: "reg-c", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{Strategy: StrategyWeighted})
	require.NoError(t, err)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "reg-b", fx.ledger.created[0].RegistrationID)
}

func TestLotteryRunProcessesSlotsInStartOrder(t *testing.T) {
	// reg-1 is interested in sections in two different slots of the same
	// course; the earlier slot wins and the later one is excluded.
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots: []models.TimeSlot{slotAt("slot-late", 14), slotAt("slot-early", 9)},
		placements: []models.SectionPlacement{
			placement("sec-late", "course-1", "slot-late", 1, 5),
			placement("sec-early", "course-1", "slot-early", 2, 5),
		},
		interest: []models.SectionInterest{
			{SectionID: "sec-late", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-early", RegistrationID: "reg-1", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.NoError(t, err)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "sec-early", fx.ledger.created[0].SectionID)
}

func TestLotteryRunIncrementalAssignsOnlyUnassigned(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{placement("sec-1", "course-1", "slot-1", 1, 2)},
		interest: []models.SectionInterest{
			{SectionID: "sec-1", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-1", RegistrationID: "reg-2", CategoryCount: 1},
		},
		existing: []models.ClassRegistration{
			{ID: "cr-1", SectionID: "sec-1", RegistrationID: "reg-1", CreatedByLottery: true},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "reg-2", fx.ledger.created[0].RegistrationID)
}

func TestLotteryRunAcceptedCoursesOnlySkipsUnreviewed(t *testing.T) {
	unreviewed := placement("sec-u", "course-u", "slot-1", 1, 5)
	unreviewed.CourseStatus = models.CourseStatusUnreviewed
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:      []models.TimeSlot{slotAt("slot-1", 9)},
		placements: []models.SectionPlacement{unreviewed, placement("sec-a", "course-a", "slot-1", 1, 5)},
		interest: []models.SectionInterest{
			{SectionID: "sec-u", RegistrationID: "reg-1", CategoryCount: 1},
			{SectionID: "sec-a", RegistrationID: "reg-2", CategoryCount: 1},
		},
	})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{AcceptedCoursesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AssignmentsCreated)
	require.Len(t, fx.ledger.created, 1)
	assert.Equal(t, "sec-a", fx.ledger.created[0].SectionID)
}

func TestLotteryRunRejectedWhileLocked(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{
		slots:  []models.TimeSlot{slotAt("slot-1", 9)},
		locked: true,
	})

	_, err := fx.service.Run(context.Background(), "prog-1", dto.RunLotteryRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLotteryLocked))
	assert.Empty(t, fx.ledger.created)
}

func TestLotteryRunUnknownProgram(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{missingProgram: true})

	_, err := fx.service.Run(context.Background(), "prog-404", dto.RunLotteryRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestLotteryHistoryFiltersByStatus(t *testing.T) {
	fx := newLotteryFixture(t, lotteryFixtureConfig{})
	fx.runs.history = []models.LotteryRun{{ID: "run-1", ProgramID: "prog-1", Status: models.LotteryRunStatusCompleted}}

	runs, err := fx.service.History(context.Background(), "prog-1", dto.LotteryRunQuery{Status: "COMPLETED"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

// --- Fixtures ---

type lotteryFixtureConfig struct {
	slots          []models.TimeSlot
	placements     []models.SectionPlacement
	interest       []models.SectionInterest
	existing       []models.ClassRegistration
	locked         bool
	missingProgram bool
	seatInsertErr  error
	runRecordErr   error
}

type lotteryFixture struct {
	service *LotteryService
	ledger  *ledgerStub
	runs    *runRecorderStub
	mock    sqlmock.Sqlmock
}

func newLotteryFixture(t *testing.T, cfg lotteryFixtureConfig) *lotteryFixture {
	ledger := &ledgerStub{existing: cfg.existing, createErr: cfg.seatInsertErr}
	runs := &runRecorderStub{createErr: cfg.runRecordErr}
	tx, mock := newLotteryTxMock(t)

	service := NewLotteryService(
		programReaderStub{missing: cfg.missingProgram},
		catalogReaderStub{slots: cfg.slots, placements: cfg.placements},
		interestReaderStub{rows: cfg.interest},
		ledger,
		runs,
		tx,
		lockerStub{locked: cfg.locked},
		nil,
		validator.New(),
		zap.NewNop(),
		LotteryConfig{MaxDuration: time.Minute, LockTTL: time.Minute},
	)
	return &lotteryFixture{service: service, ledger: ledger, runs: runs, mock: mock}
}

type programReaderStub struct {
	missing bool
}

func (s programReaderStub) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Program{ID: id, Name: "Summer Program"}, nil
}

type catalogReaderStub struct {
	slots      []models.TimeSlot
	placements []models.SectionPlacement
}

func (s catalogReaderStub) ListByProgram(ctx context.Context, programID string) ([]models.TimeSlot, error) {
	return s.slots, nil
}

func (s catalogReaderStub) ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error) {
	return s.placements, nil
}

type interestReaderStub struct {
	rows []models.SectionInterest
}

func (s interestReaderStub) ListSectionInterest(ctx context.Context, programID string) ([]models.SectionInterest, error) {
	return s.rows, nil
}

type ledgerStub struct {
	existing  []models.ClassRegistration
	created   []models.ClassRegistration
	createErr error
}

func (s *ledgerStub) ListByProgram(ctx context.Context, exec sqlx.ExtContext, programID string) ([]models.ClassRegistration, error) {
	return s.existing, nil
}

func (s *ledgerStub) CountLotteryCreated(ctx context.Context, exec sqlx.ExtContext, programID string) (int, error) {
	total := 0
	for _, seat := range s.existing {
		if seat.CreatedByLottery {
			total++
		}
	}
	return total, nil
}

func (s *ledgerStub) BulkCreateWithTx(ctx context.Context, exec sqlx.ExtContext, seats []models.ClassRegistration) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, seats...)
	return nil
}

type runRecorderStub struct {
	last      *models.LotteryRun
	history   []models.LotteryRun
	createErr error
}

func (s *runRecorderStub) Create(ctx context.Context, exec sqlx.ExtContext, run *models.LotteryRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	run.ID = "run-" + run.ProgramID
	s.last = run
	return nil
}

func (s *runRecorderStub) ListByProgram(ctx context.Context, programID string, status models.LotteryRunStatus) ([]models.LotteryRun, error) {
	return s.history, nil
}

type lockerStub struct {
	locked bool
}

func (s lockerStub) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return !s.locked, nil
}

func (s lockerStub) ReleaseLock(ctx context.Context, key string) error {
	return nil
}

type lotteryTxMock struct {
	db *sqlx.DB
}

func newLotteryTxMock(t *testing.T) (lotteryTxProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &lotteryTxMock{db: sqlxdb}, mock
}

func (m *lotteryTxMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func slotAt(id string, hour int) models.TimeSlot {
	start := time.Date(2026, 7, 6, hour, 0, 0, 0, time.UTC)
	return models.TimeSlot{ID: id, ProgramID: "prog-1", StartAt: start, EndAt: start.Add(time.Hour)}
}

func placement(sectionID, courseID, slotID string, sequence, capacity int) models.SectionPlacement {
	return models.SectionPlacement{
		SectionID:       sectionID,
		CourseID:        courseID,
		TimeSlotID:      slotID,
		SectionSequence: sequence,
		Capacity:        capacity,
		CourseStatus:    models.CourseStatusAccepted,
	}
}
