package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/edureach/program-lottery-api/internal/models"
)

// LotteryRunRepository persists the audit trail of lottery executions.
type LotteryRunRepository struct {
	db *sqlx.DB
}

// NewLotteryRunRepository constructs the repository.
func NewLotteryRunRepository(db *sqlx.DB) *LotteryRunRepository {
	return &LotteryRunRepository{db: db}
}

func (r *LotteryRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create records a run through the provided executor so it commits with the
// seats the run produced.
func (r *LotteryRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.LotteryRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	target := r.exec(exec)

	const query = `INSERT INTO lottery_runs (id, program_id, status, strategy, assignments_created, meta, started_at, finished_at)
        VALUES (:id, :program_id, :status, :strategy, :assignments_created, :meta, :started_at, :finished_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, run); err != nil {
		return fmt.Errorf("insert lottery run: %w", err)
	}
	return nil
}

// ListByProgram returns run history for a program, newest first.
func (r *LotteryRunRepository) ListByProgram(ctx context.Context, programID string, status models.LotteryRunStatus) ([]models.LotteryRun, error) {
	query := `SELECT id, program_id, status, strategy, assignments_created, meta, started_at, finished_at
FROM lottery_runs WHERE program_id = $1`
	args := []interface{}{programID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC"

	var runs []models.LotteryRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list lottery runs: %w", err)
	}
	return runs, nil
}
