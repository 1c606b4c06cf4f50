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

// CourseRepository handles persistence of courses and their sections.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses c`
	conditions := []string{"c.deleted = FALSE"}
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("c.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT c.id, c.program_id, c.title, c.max_section_size, c.max_sections, c.difficulty, c.status, c.deleted, c.created_at, c.updated_at
        %s ORDER BY c.title ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, program_id, title, max_section_size, max_sections, difficulty, status, deleted, created_at, updated_at
FROM courses WHERE id = $1 AND deleted = FALSE`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Status == "" {
		course.Status = models.CourseStatusUnreviewed
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, program_id, title, max_section_size, max_sections, difficulty, status, deleted, created_at, updated_at)
        VALUES (:id, :program_id, :title, :max_section_size, :max_sections, :difficulty, :status, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists changes to an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, max_section_size = :max_section_size, max_sections = :max_sections,
        difficulty = :difficulty, status = :status, updated_at = :updated_at
        WHERE id = :id AND deleted = FALSE`
	result, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks a course as deleted.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE courses SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSections returns the sections of a course ordered by sequence.
func (r *CourseRepository) ListSections(ctx context.Context, courseID string) ([]models.CourseSection, error) {
	const query = `SELECT id, course_id, sequence, deleted, created_at
FROM course_sections WHERE course_id = $1 AND deleted = FALSE ORDER BY sequence ASC`
	var sections []models.CourseSection
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sections: %w", err)
	}
	return sections, nil
}

// CreateSection adds a section to a course assigning the next sequence.
func (r *CourseRepository) CreateSection(ctx context.Context, exec sqlx.ExtContext, section *models.CourseSection) error {
	if section.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	target := r.exec(exec)

	const nextSeqQuery = `SELECT COALESCE(MAX(sequence), 0) + 1 FROM course_sections WHERE course_id = $1 AND deleted = FALSE`
	if err := sqlx.GetContext(ctx, target, &section.Sequence, nextSeqQuery, section.CourseID); err != nil {
		return fmt.Errorf("compute next section sequence: %w", err)
	}

	const insertQuery = `INSERT INTO course_sections (id, course_id, sequence, deleted, created_at)
        VALUES (:id, :course_id, :sequence, FALSE, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, section); err != nil {
		return fmt.Errorf("insert course section: %w", err)
	}
	return nil
}

// SoftDeleteSection marks a section as deleted.
func (r *CourseRepository) SoftDeleteSection(ctx context.Context, id string) error {
	const query = `UPDATE course_sections SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course section: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course section rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
