package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LotteryRunStatus is the terminal state of a recorded run.
type LotteryRunStatus string

const (
	LotteryRunStatusCompleted LotteryRunStatus = "COMPLETED"
	LotteryRunStatusFailed    LotteryRunStatus = "FAILED"
)

// LotteryRun records one execution of the assignment engine for a program.
// Meta carries the per-section breakdown as JSON for observability.
type LotteryRun struct {
	ID                 string           `db:"id" json:"id"`
	ProgramID          string           `db:"program_id" json:"program_id"`
	Status             LotteryRunStatus `db:"status" json:"status"`
	Strategy           string           `db:"strategy" json:"strategy"`
	AssignmentsCreated int              `db:"assignments_created" json:"assignments_created"`
	Meta               types.JSONText   `db:"meta" json:"meta"`
	StartedAt          time.Time        `db:"started_at" json:"started_at"`
	FinishedAt         time.Time        `db:"finished_at" json:"finished_at"`
}
