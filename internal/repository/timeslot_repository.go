package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edureach/program-lottery-api/internal/models"
)

// TimeSlotRepository handles persistence of time slots and section placements.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListByProgram returns a program's time slots ordered by start time.
func (r *TimeSlotRepository) ListByProgram(ctx context.Context, programID string) ([]models.TimeSlot, error) {
	const query = `SELECT id, program_id, start_at, end_at, deleted, created_at
FROM time_slots WHERE program_id = $1 AND deleted = FALSE ORDER BY start_at ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, programID); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// FindByID returns a time slot by its ID.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	const query = `SELECT id, program_id, start_at, end_at, deleted, created_at
FROM time_slots WHERE id = $1 AND deleted = FALSE`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create persists a new time slot.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO time_slots (id, program_id, start_at, end_at, deleted, created_at)
        VALUES (:id, :program_id, :start_at, :end_at, FALSE, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}
	return nil
}

// SoftDelete marks a time slot as deleted.
func (r *TimeSlotRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE time_slots SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("time slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPlacements returns every section placed into one of the program's time
// slots, joined with the owning course's capacity and status. Ordering is
// stable: slot start time, then course title, then section sequence.
func (r *TimeSlotRepository) ListPlacements(ctx context.Context, programID string) ([]models.SectionPlacement, error) {
	const query = `SELECT cs.id AS section_id, c.id AS course_id, sp.time_slot_id, sp.classroom_id,
        cs.sequence AS section_sequence, c.max_section_size AS capacity, c.status AS course_status
FROM section_placements sp
JOIN course_sections cs ON cs.id = sp.section_id AND cs.deleted = FALSE
JOIN courses c ON c.id = cs.course_id AND c.deleted = FALSE
JOIN time_slots ts ON ts.id = sp.time_slot_id AND ts.deleted = FALSE
WHERE c.program_id = $1 AND sp.deleted = FALSE
ORDER BY ts.start_at ASC, c.title ASC, cs.sequence ASC, cs.id ASC`
	var placements []models.SectionPlacement
	if err := r.db.SelectContext(ctx, &placements, query, programID); err != nil {
		return nil, fmt.Errorf("list section placements: %w", err)
	}
	return placements, nil
}
