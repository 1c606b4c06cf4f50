package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edureach/program-lottery-api/internal/models"
)

// ClassRegistrationRepository is the assignment ledger: it persists seats
// held by registrations in course sections.
type ClassRegistrationRepository struct {
	db *sqlx.DB
}

// NewClassRegistrationRepository constructs the repository.
func NewClassRegistrationRepository(db *sqlx.DB) *ClassRegistrationRepository {
	return &ClassRegistrationRepository{db: db}
}

func (r *ClassRegistrationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByProgram returns every live seat in the program's sections with the
// owning course id joined in, so callers can answer course-level exclusions
// without a placement lookup.
func (r *ClassRegistrationRepository) ListByProgram(ctx context.Context, exec sqlx.ExtContext, programID string) ([]models.ClassRegistration, error) {
	target := r.exec(exec)
	const query = `SELECT cr.id, cr.section_id, cr.registration_id, c.id AS course_id, cr.created_by_lottery, cr.confirmed_on, cr.deleted, cr.created_at
FROM class_registrations cr
JOIN course_sections cs ON cs.id = cr.section_id AND cs.deleted = FALSE
JOIN courses c ON c.id = cs.course_id AND c.deleted = FALSE
WHERE c.program_id = $1 AND cr.deleted = FALSE
ORDER BY cr.created_at ASC`
	var seats []models.ClassRegistration
	if err := sqlx.SelectContext(ctx, target, &seats, query, programID); err != nil {
		return nil, fmt.Errorf("list class registrations: %w", err)
	}
	return seats, nil
}

// CountLotteryCreated counts live lottery-created seats in the program. The
// single-fire guard keys off this, so manually created seats do not block a
// run.
func (r *ClassRegistrationRepository) CountLotteryCreated(ctx context.Context, exec sqlx.ExtContext, programID string) (int, error) {
	target := r.exec(exec)
	const query = `SELECT COUNT(*)
FROM class_registrations cr
JOIN course_sections cs ON cs.id = cr.section_id AND cs.deleted = FALSE
JOIN courses c ON c.id = cs.course_id AND c.deleted = FALSE
WHERE c.program_id = $1 AND cr.created_by_lottery = TRUE AND cr.deleted = FALSE`
	var total int
	if err := sqlx.GetContext(ctx, target, &total, query, programID); err != nil {
		return 0, fmt.Errorf("count lottery registrations: %w", err)
	}
	return total, nil
}

// BulkCreateWithTx inserts a batch of seats in a single multi-row statement
// through the provided executor so callers can make the whole batch atomic.
func (r *ClassRegistrationRepository) BulkCreateWithTx(ctx context.Context, exec sqlx.ExtContext, seats []models.ClassRegistration) error {
	if len(seats) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range seats {
		if seats[i].ID == "" {
			seats[i].ID = uuid.NewString()
		}
		if seats[i].CreatedAt.IsZero() {
			seats[i].CreatedAt = now
		}
	}

	const query = `INSERT INTO class_registrations (id, section_id, registration_id, created_by_lottery, confirmed_on, deleted, created_at)
        VALUES (:id, :section_id, :registration_id, :created_by_lottery, :confirmed_on, FALSE, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, seats); err != nil {
		return fmt.Errorf("insert class registrations: %w", err)
	}
	return nil
}

// Create persists a single manually created seat.
func (r *ClassRegistrationRepository) Create(ctx context.Context, seat *models.ClassRegistration) error {
	batch := []models.ClassRegistration{*seat}
	if err := r.BulkCreateWithTx(ctx, nil, batch); err != nil {
		return err
	}
	*seat = batch[0]
	return nil
}

// FindByID returns a seat by its ID.
func (r *ClassRegistrationRepository) FindByID(ctx context.Context, id string) (*models.ClassRegistration, error) {
	const query = `SELECT id, section_id, registration_id, created_by_lottery, confirmed_on, deleted, created_at
FROM class_registrations WHERE id = $1 AND deleted = FALSE`
	var seat models.ClassRegistration
	if err := r.db.GetContext(ctx, &seat, query, id); err != nil {
		return nil, err
	}
	return &seat, nil
}

// List returns ledger rows with catalog context, filtered and paginated.
func (r *ClassRegistrationRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	base := `FROM class_registrations cr
JOIN course_sections cs ON cs.id = cr.section_id
JOIN courses c ON c.id = cs.course_id
JOIN student_registrations sr ON sr.id = cr.registration_id`
	conditions := []string{"cr.deleted = FALSE", "cs.deleted = FALSE", "c.deleted = FALSE", "sr.deleted = FALSE"}
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("c.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.RegistrationID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.registration_id = $%d", len(args)+1))
		args = append(args, filter.RegistrationID)
	}
	if filter.LotteryOnly != nil {
		conditions = append(conditions, fmt.Sprintf("cr.created_by_lottery = $%d", len(args)+1))
		args = append(args, *filter.LotteryOnly)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT cr.id, cr.section_id, cr.registration_id, cr.created_by_lottery, cr.confirmed_on, cr.deleted, cr.created_at,
        c.id AS course_id, c.title AS course_title, cs.sequence, sr.user_id
        %s ORDER BY c.title ASC, cs.sequence ASC, cr.created_at ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return details, total, nil
}

// Confirm stamps a seat as accepted by the student.
func (r *ClassRegistrationRepository) Confirm(ctx context.Context, id string, confirmedOn time.Time) error {
	const query = `UPDATE class_registrations SET confirmed_on = $2 WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, confirmedOn)
	if err != nil {
		return fmt.Errorf("confirm class registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("class registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete releases a seat.
func (r *ClassRegistrationRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE class_registrations SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete class registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("class registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
