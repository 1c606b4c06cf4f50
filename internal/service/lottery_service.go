package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/dto"
	"github.com/edureach/program-lottery-api/internal/models"
	appErrors "github.com/edureach/program-lottery-api/pkg/errors"
)

// Lottery strategies. category_count reproduces the legacy ordering:
// candidates with fewer declared preference categories win. weighted prefers
// the strongest stated rank instead.
const (
	StrategyCategoryCount = "category_count"
	StrategyWeighted      = "weighted"
)

type lotteryProgramReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type lotteryCatalogReader interface {
	ListByProgram(ctx context.Context, programID string) ([]models.TimeSlot, error)
	ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error)
}

type lotteryInterestReader interface {
	ListSectionInterest(ctx context.Context, programID string) ([]models.SectionInterest, error)
}

type assignmentLedger interface {
	ListByProgram(ctx context.Context, exec sqlx.ExtContext, programID string) ([]models.ClassRegistration, error)
	CountLotteryCreated(ctx context.Context, exec sqlx.ExtContext, programID string) (int, error)
	BulkCreateWithTx(ctx context.Context, exec sqlx.ExtContext, seats []models.ClassRegistration) error
}

type lotteryRunRecorder interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.LotteryRun) error
	ListByProgram(ctx context.Context, programID string, status models.LotteryRunStatus) ([]models.LotteryRun, error)
}

type lotteryTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type lotteryLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type lotteryMetricsRecorder interface {
	ObserveLotteryRun(status string, created int, duration time.Duration)
}

// LotteryConfig governs engine behaviour.
type LotteryConfig struct {
	Strategy            string
	Incremental         bool
	AcceptedCoursesOnly bool
	MaxDuration         time.Duration
	LockTTL             time.Duration
}

// LotteryService assigns student registrations to course sections from their
// declared preferences, respecting capacity, no-double-booking and
// no-duplicate-course constraints.
type LotteryService struct {
	programs  lotteryProgramReader
	catalog   lotteryCatalogReader
	interest  lotteryInterestReader
	ledger    assignmentLedger
	runs      lotteryRunRecorder
	tx        lotteryTxProvider
	locker    lotteryLocker
	metrics   lotteryMetricsRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       LotteryConfig
}

// NewLotteryService wires lottery dependencies.
func NewLotteryService(
	programs lotteryProgramReader,
	catalog lotteryCatalogReader,
	interest lotteryInterestReader,
	ledger assignmentLedger,
	runs lotteryRunRecorder,
	tx lotteryTxProvider,
	locker lotteryLocker,
	metrics lotteryMetricsRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg LotteryConfig,
) *LotteryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCategoryCount
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &LotteryService{
		programs:  programs,
		catalog:   catalog,
		interest:  interest,
		ledger:    ledger,
		runs:      runs,
		tx:        tx,
		locker:    locker,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes the lottery for a program. The whole computation is bounded
// by the configured wall-clock limit, guarded by a per-program advisory
// lock, and every created seat plus the run record commits in one
// transaction.
func (s *LotteryService) Run(ctx context.Context, programID string, req dto.RunLotteryRequest) (*dto.RunLotteryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lottery run payload")
	}
	if programID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program id is required")
	}
	if _, err := s.programs.FindByID(ctx, programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	strategy := s.cfg.Strategy
	if req.Strategy != "" {
		strategy = req.Strategy
	}
	incremental := s.cfg.Incremental || req.Incremental
	acceptedOnly := s.cfg.AcceptedCoursesOnly || req.AcceptedCoursesOnly

	if s.locker != nil {
		lockKey := "lottery:run:" + programID
		ok, err := s.locker.AcquireLock(ctx, lockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire lottery lock")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrLotteryLocked, "a lottery run for this program is already in progress")
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.Warn("failed to release lottery lock", zap.String("program_id", programID), zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxDuration)
	defer cancel()

	startedAt := time.Now().UTC()

	alreadyCreated, err := s.ledger.CountLotteryCreated(ctx, nil, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect assignment ledger")
	}
	if alreadyCreated > 0 && !incremental {
		return nil, appErrors.Clone(appErrors.ErrLotteryAlreadyRun, "lottery has already been run for this program")
	}

	state, err := s.buildState(ctx, programID, acceptedOnly)
	if err != nil {
		return nil, err
	}

	seats, outcomes := state.assign(strategy)

	run := &models.LotteryRun{
		ProgramID:          programID,
		Status:             models.LotteryRunStatusCompleted,
		Strategy:           strategy,
		AssignmentsCreated: len(seats),
		StartedAt:          startedAt,
	}
	if metaBytes, marshalErr := json.Marshal(map[string]any{
		"sections":    outcomes,
		"incremental": incremental,
	}); marshalErr == nil {
		run.Meta = types.JSONText(metaBytes)
	}

	if err := s.persist(ctx, programID, incremental, seats, run); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveLotteryRun("failed", 0, time.Since(startedAt))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveLotteryRun("completed", len(seats), time.Since(startedAt))
	}
	s.logger.Info("lottery run completed",
		zap.String("program_id", programID),
		zap.String("strategy", strategy),
		zap.Int("assignments_created", len(seats)),
		zap.Duration("duration", time.Since(startedAt)))

	return &dto.RunLotteryResponse{
		RunID:              run.ID,
		ProgramID:          programID,
		Strategy:           strategy,
		AssignmentsCreated: len(seats),
		Sections:           outcomes,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
	}, nil
}

// History returns recorded runs for a program, newest first.
func (s *LotteryService) History(ctx context.Context, programID string, query dto.LotteryRunQuery) ([]models.LotteryRun, error) {
	if programID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program id is required")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run history query")
	}
	runs, err := s.runs.ListByProgram(ctx, programID, models.LotteryRunStatus(query.Status))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lottery runs")
	}
	return runs, nil
}

func (s *LotteryService) buildState(ctx context.Context, programID string, acceptedOnly bool) (*lotteryState, error) {
	slots, err := s.catalog.ListByProgram(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	placements, err := s.catalog.ListPlacements(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section placements")
	}
	interest, err := s.interest.ListSectionInterest(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section interest")
	}
	existing, err := s.ledger.ListByProgram(ctx, nil, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}

	if acceptedOnly {
		filtered := placements[:0]
		for _, placement := range placements {
			if placement.CourseStatus == models.CourseStatusAccepted {
				filtered = append(filtered, placement)
			}
		}
		placements = filtered
	}

	return newLotteryState(slots, placements, interest, existing), nil
}

// persist writes the produced seats and the run record atomically. The
// single-fire guard is re-checked inside the transaction so two racing runs
// cannot both commit even without the advisory lock.
func (s *LotteryService) persist(ctx context.Context, programID string, incremental bool, seats []models.ClassRegistration, run *models.LotteryRun) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin lottery transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	alreadyCreated, countErr := s.ledger.CountLotteryCreated(ctx, tx, programID)
	if countErr != nil {
		err = appErrors.Wrap(countErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-check assignment ledger")
		return err
	}
	if alreadyCreated > 0 && !incremental {
		err = appErrors.Clone(appErrors.ErrLotteryAlreadyRun, "lottery has already been run for this program")
		return err
	}

	if err = s.ledger.BulkCreateWithTx(ctx, tx, seats); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist lottery assignments")
		return err
	}
	run.FinishedAt = time.Now().UTC()
	if err = s.runs.Create(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record lottery run")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit lottery transaction")
		return err
	}
	return nil
}

// --- Lottery state ---

// lotteryState is the in-memory pass index. Exclusions (seat in the same
// course, seat in the same time slot) are answered from here, never from a
// fresh storage query, so picks made earlier in the same pass are always
// visible.
type lotteryState struct {
	slotOrder      []string
	sectionsBySlot map[string][]models.SectionPlacement
	interest       map[string][]models.SectionInterest
	sectionCourse  map[string]string
	sectionSlots   map[string][]string
	assignedSlots  map[string]map[string]bool
	assignedCourse map[string]map[string]bool
	filled         map[string]int
}

func newLotteryState(
	slots []models.TimeSlot,
	placements []models.SectionPlacement,
	interest []models.SectionInterest,
	existing []models.ClassRegistration,
) *lotteryState {
	state := &lotteryState{
		sectionsBySlot: make(map[string][]models.SectionPlacement),
		interest:       make(map[string][]models.SectionInterest),
		sectionCourse:  make(map[string]string),
		sectionSlots:   make(map[string][]string),
		assignedSlots:  make(map[string]map[string]bool),
		assignedCourse: make(map[string]map[string]bool),
		filled:         make(map[string]int),
	}

	ordered := make([]models.TimeSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].StartAt.Equal(ordered[j].StartAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].StartAt.Before(ordered[j].StartAt)
	})
	for _, slot := range ordered {
		state.slotOrder = append(state.slotOrder, slot.ID)
	}

	// A section may be placed in several time slots; every placement row is
	// indexed so a seat in the section claims all of its slots.
	for _, placement := range placements {
		state.sectionsBySlot[placement.TimeSlotID] = append(state.sectionsBySlot[placement.TimeSlotID], placement)
		state.sectionCourse[placement.SectionID] = placement.CourseID
		state.sectionSlots[placement.SectionID] = append(state.sectionSlots[placement.SectionID], placement.TimeSlotID)
	}
	for slotID := range state.sectionsBySlot {
		sections := state.sectionsBySlot[slotID]
		sort.Slice(sections, func(i, j int) bool {
			if sections[i].CourseID != sections[j].CourseID {
				return sections[i].CourseID < sections[j].CourseID
			}
			if sections[i].SectionSequence != sections[j].SectionSequence {
				return sections[i].SectionSequence < sections[j].SectionSequence
			}
			return sections[i].SectionID < sections[j].SectionID
		})
	}

	for _, row := range interest {
		state.interest[row.SectionID] = append(state.interest[row.SectionID], row)
	}

	// Ledger rows carry their course id directly, so a pre-existing seat in a
	// section whose placement has since been removed still excludes the
	// course.
	for _, seat := range existing {
		state.reserve(seat.RegistrationID, seat.SectionID)
		if seat.CourseID != "" {
			state.markCourse(seat.RegistrationID, seat.CourseID)
		}
	}
	return state
}

func (s *lotteryState) markCourse(registrationID, courseID string) {
	if s.assignedCourse[registrationID] == nil {
		s.assignedCourse[registrationID] = make(map[string]bool)
	}
	s.assignedCourse[registrationID][courseID] = true
}

func (s *lotteryState) reserve(registrationID, sectionID string) {
	s.filled[sectionID]++
	for _, slotID := range s.sectionSlots[sectionID] {
		if s.assignedSlots[registrationID] == nil {
			s.assignedSlots[registrationID] = make(map[string]bool)
		}
		s.assignedSlots[registrationID][slotID] = true
	}
	if courseID, ok := s.sectionCourse[sectionID]; ok {
		s.markCourse(registrationID, courseID)
	}
}

func (s *lotteryState) eligible(registrationID, sectionID string) bool {
	if slots := s.assignedSlots[registrationID]; slots != nil {
		for _, slotID := range s.sectionSlots[sectionID] {
			if slots[slotID] {
				return false
			}
		}
	}
	if courses := s.assignedCourse[registrationID]; courses != nil && courses[s.sectionCourse[sectionID]] {
		return false
	}
	return true
}

// assign walks time slots in start order and fills each section greedily
// from its ranked candidate pool. A section placed in several slots is
// filled once, at its earliest slot.
func (s *lotteryState) assign(strategy string) ([]models.ClassRegistration, []dto.SectionOutcome) {
	var seats []models.ClassRegistration
	var outcomes []dto.SectionOutcome
	processed := make(map[string]bool)

	for _, slotID := range s.slotOrder {
		for _, section := range s.sectionsBySlot[slotID] {
			if processed[section.SectionID] {
				continue
			}
			processed[section.SectionID] = true
			pool := s.interest[section.SectionID]
			candidates := make([]models.SectionInterest, 0, len(pool))
			for _, candidate := range pool {
				if s.eligible(candidate.RegistrationID, section.SectionID) {
					candidates = append(candidates, candidate)
				}
			}
			rankCandidates(candidates, strategy)

			assigned := 0
			for _, candidate := range candidates {
				if s.filled[section.SectionID] >= section.Capacity {
					break
				}
				seats = append(seats, models.ClassRegistration{
					SectionID:        section.SectionID,
					RegistrationID:   candidate.RegistrationID,
					CreatedByLottery: true,
				})
				s.reserve(candidate.RegistrationID, section.SectionID)
				assigned++
			}

			outcomes = append(outcomes, dto.SectionOutcome{
				SectionID:  section.SectionID,
				CourseID:   section.CourseID,
				TimeSlotID: slotID,
				Capacity:   section.Capacity,
				Filled:     s.filled[section.SectionID],
				Assigned:   assigned,
				Interested: len(pool),
			})
		}
	}
	return seats, outcomes
}

// rankCandidates orders the pool for greedy filling. Every comparison ends
// in the registration id so the outcome is reproducible for a fixed
// snapshot.
func rankCandidates(candidates []models.SectionInterest, strategy string) {
	switch strategy {
	case StrategyWeighted:
		sort.Slice(candidates, func(i, j int) bool {
			iv, jv := rankValue(candidates[i]), rankValue(candidates[j])
			if iv != jv {
				return iv < jv
			}
			if candidates[i].CategoryCount != candidates[j].CategoryCount {
				return candidates[i].CategoryCount > candidates[j].CategoryCount
			}
			return candidates[i].RegistrationID < candidates[j].RegistrationID
		})
	default:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].CategoryCount != candidates[j].CategoryCount {
				return candidates[i].CategoryCount < candidates[j].CategoryCount
			}
			return candidates[i].RegistrationID < candidates[j].RegistrationID
		})
	}
}

func rankValue(candidate models.SectionInterest) int {
	if candidate.BestValue == nil {
		return int(^uint(0) >> 1)
	}
	return *candidate.BestValue
}
