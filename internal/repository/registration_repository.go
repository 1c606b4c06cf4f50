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

// RegistrationRepository handles persistence of student registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// List returns registrations filtered by the provided criteria.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.StudentRegistration, int, error) {
	base := `FROM student_registrations sr`
	conditions := []string{"sr.deleted = FALSE"}
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
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

	query := fmt.Sprintf(`SELECT sr.id, sr.program_id, sr.user_id, sr.deleted, sr.created_at, sr.updated_at
        %s ORDER BY sr.created_at ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var registrations []models.StudentRegistration
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.StudentRegistration, error) {
	const query = `SELECT id, program_id, user_id, deleted, created_at, updated_at
FROM student_registrations WHERE id = $1 AND deleted = FALSE`
	var registration models.StudentRegistration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// Exists checks whether a user is already registered for a program.
func (r *RegistrationRepository) Exists(ctx context.Context, programID, userID string) (bool, error) {
	const query = `SELECT 1 FROM student_registrations WHERE program_id = $1 AND user_id = $2 AND deleted = FALSE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, programID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// Create persists a new registration record.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.StudentRegistration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	const query = `INSERT INTO student_registrations (id, program_id, user_id, deleted, created_at, updated_at)
        VALUES (:id, :program_id, :user_id, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// SoftDelete marks a registration as deleted.
func (r *RegistrationRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE student_registrations SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
